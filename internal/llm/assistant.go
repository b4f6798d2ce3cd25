package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/studybot/studybot/internal/config"
	"github.com/studybot/studybot/internal/logger"
)

type Outcome string

const (
	OutcomeOK     Outcome = "ok"
	OutcomeEmpty  Outcome = "empty"
	OutcomeFailed Outcome = "failed"
)

// Answer is always safe to show to the user.
type Answer struct {
	Text    string
	Outcome Outcome
}

// User-facing fallbacks
const (
	FallbackTextReply  = "عذراً، لم أتمكن من الوصول إلى إجابة لسؤالك. حاول إعادة صياغته بشكل أوضح."
	FallbackImageReply = "لم أتمكن من قراءة محتوى الصورة. من فضلك اكتب السؤال نصياً أو أرسل صورة أوضح."
	UnavailableReply   = "خدمة الذكاء الاصطناعي غير مفعلة حالياً. حاول لاحقاً."
	ApologyTemplate    = "عذراً، حدث خطأ أثناء معالجة طلبك (%s). حاول مرة أخرى لاحقاً."
)

// Keywords that route a question to the math/science instruction. Matched as
// case-insensitive substrings.
var mathKeywords = []string{
	"رياضيات", "معادلة", "مسألة", "احسب", "جبر", "هندسة", "مثلث", "كسر", "جذر",
	"مساحة", "محيط", "نسبة", "تكامل", "اشتقاق", "مشتقة", "لوغاريتم",
	"علوم", "فيزياء", "كيمياء", "أحياء", "تفاعل", "سرعة", "تسارع", "طاقة", "كتلة", "قانون",
	"math", "equation", "solve", "calculate", "algebra", "geometry", "triangle",
	"fraction", "integral", "derivative", "logarithm", "physics", "chemistry",
	"biology", "science", "formula",
}

const (
	mathInstructionTemplate = "You are a patient math and science tutor for school students. " +
		"Solve the problem step by step, show every calculation, state the final answer clearly " +
		"and point out mistakes students commonly make. Always reply in %s."
	generalInstructionTemplate = "You are a helpful study assistant for school students. " +
		"Explain clearly and concisely, using simple examples where useful. Always reply in %s."
	imagePrompt = "The image contains school homework. For each problem in the image: " +
		"1) give the answer, 2) explain the solution step by step, " +
		"3) correct the mistakes students commonly make on it. " +
		"If the image contains no readable question, say so in one short sentence."
)

// IsMathQuestion reports whether the prompt mentions a math or science keyword.
func IsMathQuestion(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, keyword := range mathKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// Assistant turns user text and images into completion requests and always
// produces a reply that can be sent back.
type Assistant struct {
	completer    Completer
	language     string
	textTimeout  time.Duration
	imageTimeout time.Duration
}

// NewAssistant picks the backend from cfg. Without LLM configuration every
// question is answered with UnavailableReply.
func NewAssistant(cfg *config.Config) *Assistant {
	var completer Completer
	if cfg.HasLLMConfig() {
		if cfg.LLMProvider == "gemini" {
			geminiClient, err := NewGeminiSDKClient(cfg)
			if err != nil {
				logger.Warn("Failed to initialize Gemini client", map[string]interface{}{
					"error": err.Error(),
				})
			} else {
				completer = geminiClient
			}
		} else {
			completer = NewClient(cfg)
		}
	}

	return NewAssistantWithCompleter(completer, cfg.ReplyLanguage, cfg.LLMTextTimeout, cfg.LLMImageTimeout)
}

func NewAssistantWithCompleter(completer Completer, language string, textTimeout, imageTimeout time.Duration) *Assistant {
	if language == "" {
		language = "Arabic"
	}
	return &Assistant{
		completer:    completer,
		language:     language,
		textTimeout:  textTimeout,
		imageTimeout: imageTimeout,
	}
}

func (a *Assistant) Enabled() bool {
	return a.completer != nil
}

// SystemInstruction returns the instruction used for prompt.
func (a *Assistant) SystemInstruction(prompt string) string {
	if IsMathQuestion(prompt) {
		return fmt.Sprintf(mathInstructionTemplate, a.language)
	}
	return fmt.Sprintf(generalInstructionTemplate, a.language)
}

// AskText answers a free-text question.
func (a *Assistant) AskText(ctx context.Context, prompt string) Answer {
	if !a.Enabled() {
		return Answer{Text: UnavailableReply, Outcome: OutcomeFailed}
	}

	req := Request{
		System: a.SystemInstruction(prompt),
		Prompt: prompt,
	}
	return a.complete(ctx, req, a.textTimeout, FallbackTextReply)
}

// AskImage sends the image at imagePath to the vision model. caption, when
// present, is passed along as the student's note.
func (a *Assistant) AskImage(ctx context.Context, imagePath, caption string) Answer {
	if !a.Enabled() {
		return Answer{Text: UnavailableReply, Outcome: OutcomeFailed}
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		logger.Error("Failed to read downloaded image", map[string]interface{}{
			"path":  imagePath,
			"error": err.Error(),
		})
		return Answer{Text: fmt.Sprintf(ApologyTemplate, "file"), Outcome: OutcomeFailed}
	}
	if len(data) == 0 {
		return Answer{Text: FallbackImageReply, Outcome: OutcomeEmpty}
	}

	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}

	prompt := imagePrompt
	if caption = strings.TrimSpace(caption); caption != "" {
		prompt += "\n\nStudent note: " + caption
	}

	req := Request{
		System:    fmt.Sprintf(mathInstructionTemplate, a.language),
		Prompt:    prompt,
		Image:     data,
		ImageMIME: mime,
	}
	return a.complete(ctx, req, a.imageTimeout, FallbackImageReply)
}

func (a *Assistant) complete(ctx context.Context, req Request, timeout time.Duration, fallback string) Answer {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := a.completer.Complete(ctx, req)
	if err != nil {
		indicator := StatusIndicator(err)
		logger.Error("Completion request failed", map[string]interface{}{
			"error":     err.Error(),
			"status":    indicator,
			"has_image": req.HasImage(),
			"duration":  time.Since(start).String(),
		})
		return Answer{Text: fmt.Sprintf(ApologyTemplate, indicator), Outcome: OutcomeFailed}
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return Answer{Text: fallback, Outcome: OutcomeEmpty}
	}

	logger.Debug("Completion request succeeded", map[string]interface{}{
		"has_image":   req.HasImage(),
		"reply_chars": len([]rune(reply)),
		"duration":    time.Since(start).String(),
	})
	return Answer{Text: reply, Outcome: OutcomeOK}
}

// StatusIndicator condenses a completion error into a short code for the user:
// the HTTP status, "timeout", "network" or "error".
func StatusIndicator(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return strconv.Itoa(statusErr.StatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}
	return "error"
}
