// ABOUTME: Translation service client used by the voice bridge.
// ABOUTME: Translates text between language tags; source may be auto-detected.

package api

import (
	"context"
	"fmt"
	"net/http"
)

// Translator converts text between languages. The voice bridge depends
// on this interface; TranslateClient is the HTTP implementation.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage, sourceLanguage string) (string, error)
}

// translateRequest is the POST /chat/translate body. A null source
// language asks the server to auto-detect.
type translateRequest struct {
	Text           string  `json:"text"`
	TargetLanguage string  `json:"target_language"`
	SourceLanguage *string `json:"source_language"`
}

// translateResponse covers both server response shapes (with and
// without detection metadata); only the translated text matters here.
type translateResponse struct {
	TranslatedText string `json:"translated_text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

// SupportedLanguages is the GET /chat/languages response.
type SupportedLanguages struct {
	Languages     []string          `json:"languages"`
	LanguageCodes map[string]string `json:"language_codes"`
}

// TranslateClient implements Translator against the chat backend.
type TranslateClient struct {
	*Client
}

// NewTranslateClient wraps a Client as a Translator.
func NewTranslateClient(c *Client) *TranslateClient {
	return &TranslateClient{Client: c}
}

var _ Translator = (*TranslateClient)(nil)

// translationErr maps a failed translation call to a TranslationError.
func translationErr(status int, detail string) error {
	return &TranslationError{StatusCode: status, Message: detail}
}

// Translate converts text to targetLanguage. Pass sourceLanguage "" to
// let the server detect it.
func (c *TranslateClient) Translate(ctx context.Context, text, targetLanguage, sourceLanguage string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("text is required")
	}
	if targetLanguage == "" {
		return "", fmt.Errorf("target language is required")
	}

	req := translateRequest{Text: text, TargetLanguage: targetLanguage}
	if sourceLanguage != "" {
		req.SourceLanguage = &sourceLanguage
	}

	var resp translateResponse
	if err := c.doJSON(ctx, http.MethodPost, "/chat/translate", req, &resp, translationErr); err != nil {
		return "", err
	}
	return resp.TranslatedText, nil
}

// Languages lists the language names and codes the service supports.
func (c *TranslateClient) Languages(ctx context.Context) (SupportedLanguages, error) {
	var langs SupportedLanguages
	if err := c.doJSON(ctx, http.MethodGet, "/chat/languages", nil, &langs, translationErr); err != nil {
		return SupportedLanguages{}, err
	}
	return langs, nil
}
