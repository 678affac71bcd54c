package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"market-briefer/internal/jsonx"
	"market-briefer/internal/model"
)

// SectionRequest carries everything the model needs to analyze one
// section of a subscriber's brief.
type SectionRequest struct {
	Section        model.Section
	Query          string
	Items          []model.SearchResultItem
	Borrowed       []model.SearchResultItem
	Profile        model.Profile
	ExcludedTopics []string
}

// Synthesizer defines the AI analysis interface used by the pipeline.
type Synthesizer interface {
	// SynthesizeSection analyzes one section's sources and returns the
	// structured synthesis. A malformed model response yields an empty
	// synthesis, not an error; only transport failures error.
	SynthesizeSection(ctx context.Context, req SectionRequest) (model.SectionSynthesis, error)
}

// OpenAIClient implements Synthesizer using OpenAI Chat Completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional
}

func NewOpenAI(cfg Config) *OpenAIClient {
	var c *openai.Client
	if cfg.BaseURL != "" {
		cc := openai.DefaultConfig(cfg.APIKey)
		cc.BaseURL = cfg.BaseURL
		c = openai.NewClientWithConfig(cc)
	} else {
		c = openai.NewClient(cfg.APIKey)
	}
	model := cfg.Model
	if model == "" {
		panic("OpenAI model must be specified")
	}
	return &OpenAIClient{client: c, model: model}
}

func (o *OpenAIClient) SynthesizeSection(ctx context.Context, req SectionRequest) (model.SectionSynthesis, error) {
	ctx, cancel := context.WithTimeout(ctx, 180*time.Second)
	defer cancel()

	if len(req.Items) == 0 && len(req.Borrowed) == 0 {
		return model.SectionSynthesis{}, nil
	}

	sys := sectionSystemPrompt(req)
	user := sectionUserPrompt(req)

	out, err := o.create(ctx, sys, user)
	if err != nil {
		slog.Error("openai: synthesize section error", "section", req.Section, "err", err)
		return model.SectionSynthesis{}, err
	}

	var syn model.SectionSynthesis
	block := jsonx.ExtractBlock(out)
	if err := json.Unmarshal([]byte(block), &syn); err != nil {
		// Garbage out of the model is a data problem, not a pipeline
		// failure; the section just comes back empty.
		slog.Warn("openai: unparseable section response", "section", req.Section, "err", err)
		return model.SectionSynthesis{}, nil
	}
	return syn, nil
}

func sectionSystemPrompt(req SectionRequest) string {
	var excluded string
	if len(req.ExcludedTopics) > 0 {
		excluded = fmt.Sprintf(
			"\nNunca proponha ideias sobre os seguintes temas já usados recentemente: %s.",
			strings.Join(req.ExcludedTopics, "; "))
	}
	return fmt.Sprintf(`Você é um analista de inteligência de mercado para %s (%s).
Analise as fontes fornecidas para a seção "%s" do relatório semanal do assinante.
Para cada fonte relevante, extraia oportunidades de conteúdo com título, categoria
(polemica, educativo, newsjacking, entretenimento, estudo_caso, futuro ou outros),
score de 0 a 100, explicação do score, trecho base analisado e gatilho criativo.
Responda SOMENTE com um objeto JSON, sem texto fora do JSON, no formato:
{"fontes_analisadas": [{"url_original": "...", "titulo_original": "...",
"oportunidades": [{"titulo_ideia": "...", "tipo": "...", "score": 0,
"explicacao_score": "...", "texto_base_analisado": "...", "gatilho_criativo": "..."}]}],
"temas_populares": ["..."]}
Use em url_original exatamente uma das URLs fornecidas, sem inventar URLs.%s`,
		req.Profile.Name, req.Profile.Specialization, req.Section, excluded)
}

func sectionUserPrompt(req SectionRequest) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Negócio: %s\nProdutos/serviços: %s\nPúblico-alvo: %s\nLocalização: %s\n",
		req.Profile.BusinessDescription, req.Profile.ProductsServices,
		req.Profile.TargetAudience, req.Profile.Location)
	fmt.Fprintf(b, "Consulta da seção: %s\n\nFontes:\n", req.Query)
	for i, it := range req.Items {
		fmt.Fprintf(b, "%d. %s\n   %s\n   %s\n", i+1, it.Title, it.URL, it.Snippet)
	}
	if len(req.Borrowed) > 0 {
		b.WriteString("\nFontes complementares de outras seções:\n")
		for i, it := range req.Borrowed {
			fmt.Fprintf(b, "%d. %s\n   %s\n   %s\n", i+1, it.Title, it.URL, it.Snippet)
		}
	}
	return b.String()
}

func (o *OpenAIClient) create(ctx context.Context, system, user string) (string, error) {
	// Default timeout guard, if caller didn't set one
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.4,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
