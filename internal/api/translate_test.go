// ABOUTME: Tests for the translation service client.
// ABOUTME: Covers auto-detection requests and translation error mapping.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateClient_Translate(t *testing.T) {
	var gotBody translateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/translate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(translateResponse{
			TranslatedText: "नमस्ते",
			SourceLanguage: "english",
			TargetLanguage: "hindi",
		})
	}))
	defer srv.Close()

	client := NewTranslateClient(NewClient(srv.URL, "", nil))

	out, err := client.Translate(context.Background(), "Hello", "hindi", "english")
	require.NoError(t, err)
	assert.Equal(t, "नमस्ते", out)
	require.NotNil(t, gotBody.SourceLanguage)
	assert.Equal(t, "english", *gotBody.SourceLanguage)
}

func TestTranslateClient_Translate_AutoDetect(t *testing.T) {
	var gotBody translateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(translateResponse{TranslatedText: "hola"})
	}))
	defer srv.Close()

	client := NewTranslateClient(NewClient(srv.URL, "", nil))

	out, err := client.Translate(context.Background(), "hello", "spanish", "")
	require.NoError(t, err)
	assert.Equal(t, "hola", out)
	assert.Nil(t, gotBody.SourceLanguage, "empty source language should request auto-detection")
}

func TestTranslateClient_Translate_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "engine offline"})
	}))
	defer srv.Close()

	client := NewTranslateClient(NewClient(srv.URL, "", nil))

	_, err := client.Translate(context.Background(), "Hello", "hindi", "")
	require.Error(t, err)

	var te *TranslationError
	require.True(t, errors.As(err, &te))
	assert.Contains(t, te.Message, "engine offline")
}

func TestTranslateClient_Translate_Validation(t *testing.T) {
	client := NewTranslateClient(NewClient("http://unused", "", nil))

	_, err := client.Translate(context.Background(), "", "hindi", "")
	require.Error(t, err)

	_, err = client.Translate(context.Background(), "hello", "", "")
	require.Error(t, err)
}

func TestTranslateClient_Languages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/languages", r.URL.Path)
		_ = json.NewEncoder(w).Encode(SupportedLanguages{
			Languages:     []string{"english", "hindi"},
			LanguageCodes: map[string]string{"english": "en", "hindi": "hi"},
		})
	}))
	defer srv.Close()

	client := NewTranslateClient(NewClient(srv.URL, "", nil))

	langs, err := client.Languages(context.Background())
	require.NoError(t, err)
	assert.Contains(t, langs.Languages, "hindi")
	assert.Equal(t, "hi", langs.LanguageCodes["hindi"])
}
