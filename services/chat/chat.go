// Package chat answers the learners' questions through the Gemini generative-language API.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/user"
	"github.com/quransn/academy/services/rest"
)

const (
	RoleUser  = "user"
	RoleModel = "model"

	// ApologyOffline is the reply whenever the assistant cannot be reached.
	ApologyOffline = "Désolé, j'ai un problème de connexion (Problème réseau bi dafa am jafe-jafe)."
	// ApologyEmpty is the reply when the assistant returned no text.
	ApologyEmpty = "Désolé, je n'ai pas compris. Mën nga ko waxaat ?"

	maxMessageLen = 2000
)

var errEmptyMessage = errors.New("message is required")

type Message struct {
	Role string `json:"role" validate:"required,oneof=user model"`
	Text string `json:"text" validate:"required,max=4000"`
}

const systemPrompt = `Tu es "Adia", une assistante virtuelle sénégalaise, experte en éducation islamique pour la plateforme "%s".

TON PROFIL :
- Tu es bienveillante, respectueuse et sage.
- Tu comprends et parles couramment le Français et le Wolof (tu peux mélanger les deux si l'utilisateur le fait).
- Tu connais le contexte de l'utilisateur : %s, Niveau %d, XP %d.

TES MISSIONS :
1. Aider l'apprentissage du Coran (Tajwid, Tafsir, Mémorisation).
2. Répondre aux questions religieuses avec des sources fiables (Coran & Sunnah).
3. Guider l'utilisateur dans l'interface (Inscriptions, Quiz, Lives).
4. Encourager la progression (Gamification).

STYLE DE RÉPONSE :
- Si on te parle en Wolof, réponds en Wolof (ou mix Wolof/Français).
- Sois concise pour une interface de chat.
- Utilise des expressions locales sénégalaises si approprié (MachAllah, Naka suba ci, Jërëjëf).

INTERDIT :
- Ne donne pas d'avis juridiques (Fatwa) complexes, renvoie vers les savants.
- Ne parle pas de politique ou de sujets polémiques hors religion.`

type (
	part struct {
		Text string `json:"text"`
	}
	content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}
	generateRequest struct {
		SystemInstruction content   `json:"systemInstruction"`
		Contents          []content `json:"contents"`
		GenerationConfig  struct {
			Temperature float64 `json:"temperature"`
		} `json:"generationConfig"`
	}
	generateResponse struct {
		Candidates []struct {
			Content content `json:"content"`
		} `json:"candidates"`
	}
)

type Client struct {
	http        *resty.Client
	appName     string
	apiKey      string
	model       string
	temperature float64
	historySize int
	logger      core.Logger
}

func NewClient(conf *core.Config, logger core.Logger) *Client {
	return &Client{
		http:        rest.New(conf.Chat.BaseURL, conf.Chat.Timeout, nil),
		appName:     conf.AppName,
		apiKey:      conf.Chat.APIKey,
		model:       conf.Chat.Model,
		temperature: conf.Chat.Temperature,
		historySize: conf.Chat.HistorySize,
		logger:      logger,
	}
}

func (c *Client) request(usr user.User, history []Message, text string) generateRequest {
	if len(history) > c.historySize {
		history = history[len(history)-c.historySize:]
	}
	req := generateRequest{
		SystemInstruction: content{Parts: []part{{Text: fmt.Sprintf(systemPrompt, c.appName, usr.FirstName, usr.Level, usr.XP)}}},
		Contents:          make([]content, 0, len(history)+1),
	}
	req.GenerationConfig.Temperature = c.temperature
	for _, m := range history {
		req.Contents = append(req.Contents, content{Role: m.Role, Parts: []part{{Text: m.Text}}})
	}
	req.Contents = append(req.Contents, content{Role: RoleUser, Parts: []part{{Text: text}}})
	return req
}

// Reply asks the assistant to answer `text` given the last turns of `history`.
// Upstream failures never surface as errors: the reply is then an apology.
func (c *Client) Reply(ctx context.Context, usr user.User, history []Message, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, core.NewValidationError(errEmptyMessage, core.FieldError{Field: "text", Error: errEmptyMessage.Error()})
	}
	if len([]rune(text)) > maxMessageLen {
		err := errors.New("message is too long")
		return Message{}, core.NewValidationError(err, core.FieldError{Field: "text", Error: err.Error()})
	}
	if c.apiKey == "" {
		c.logger.Warn("chat: no API key configured")
		return Message{Role: RoleModel, Text: ApologyOffline}, nil
	}

	var res generateResponse
	err := rest.Check(c.http.R().
		SetContext(ctx).
		SetPathParam("model", c.model).
		SetQueryParam("key", c.apiKey).
		SetBody(c.request(usr, history, text)).
		SetResult(&res).
		Post("/models/{model}:generateContent"))
	if err != nil {
		c.logger.Error(fmt.Sprintf("chat: generating reply: %v", err), err)
		return Message{Role: RoleModel, Text: ApologyOffline}, nil
	}

	var b strings.Builder
	if len(res.Candidates) > 0 {
		for _, p := range res.Candidates[0].Content.Parts {
			b.WriteString(p.Text)
		}
	}
	reply := strings.TrimSpace(b.String())
	if reply == "" {
		reply = ApologyEmpty
	}
	return Message{Role: RoleModel, Text: reply}, nil
}
