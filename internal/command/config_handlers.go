package command

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fieldnote/recorder-agent/internal/config"
	"github.com/fieldnote/recorder-agent/internal/preflight"
)

func (s *Server) registerConfigRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get_config",
		Method:      http.MethodGet,
		Path:        "/api/v1/config",
		Summary:     "Get current agent settings",
		Tags:        []string{"Config"},
	}, s.handleGetConfig)

	huma.Register(s.api, huma.Operation{
		OperationID: "save_config",
		Method:      http.MethodPut,
		Path:        "/api/v1/config",
		Summary:     "Save agent settings",
		Tags:        []string{"Config"},
	}, s.handleSaveConfig)

	huma.Register(s.api, huma.Operation{
		OperationID: "get_auth_credentials",
		Method:      http.MethodGet,
		Path:        "/api/v1/credentials",
		Summary:     "Get the current server access credentials",
		Tags:        []string{"Config"},
	}, s.handleGetAuthCredentials)

	huma.Register(s.api, huma.Operation{
		OperationID: "save_auth_credentials",
		Method:      http.MethodPut,
		Path:        "/api/v1/credentials",
		Summary:     "Save the server access credentials",
		Tags:        []string{"Config"},
	}, s.handleSaveAuthCredentials)
}

type SettingsBody struct {
	ServerUrl       string `json:"serverUrl"`
	MaxStorageGb    int    `json:"maxStorageGb"`
	FfmpegPath      string `json:"ffmpegPath"`
	AutoImport      bool   `json:"autoImport"`
	AutoStart       bool   `json:"autoStart"`
	WatchIntervalMs int    `json:"watchIntervalMs"`
}

type GetConfigOutput struct {
	Body SettingsBody
}

func (s *Server) handleGetConfig(_ context.Context, _ *struct{}) (*GetConfigOutput, error) {
	current := s.settings.Get()
	out := &GetConfigOutput{}
	out.Body = SettingsBody(current)
	return out, nil
}

type SaveConfigInput struct {
	Body SettingsBody
}

func (s *Server) handleSaveConfig(_ context.Context, input *SaveConfigInput) (*GetConfigOutput, error) {
	next := config.Settings(input.Body)
	if err := s.settings.Save(next); err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error(), err)
	}
	out := &GetConfigOutput{}
	out.Body = SettingsBody(next)
	return out, nil
}

type CredentialsBody struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type GetAuthCredentialsOutput struct {
	Body CredentialsBody
}

func (s *Server) handleGetAuthCredentials(_ context.Context, _ *struct{}) (*GetAuthCredentialsOutput, error) {
	creds := s.credentials.Get()
	out := &GetAuthCredentialsOutput{}
	out.Body = CredentialsBody{ClientID: creds.ClientId, ClientSecret: creds.ClientSecret}
	return out, nil
}

type SaveAuthCredentialsInput struct {
	Body CredentialsBody
}

func (s *Server) handleSaveAuthCredentials(_ context.Context, input *SaveAuthCredentialsInput) (*GetAuthCredentialsOutput, error) {
	next := config.Credentials{ClientId: input.Body.ClientID, ClientSecret: input.Body.ClientSecret}
	if err := s.credentials.Save(next); err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error(), err)
	}

	s.preflight.SetCredentials(preflight.Credentials{ClientID: next.ClientId, ClientSecret: next.ClientSecret})

	out := &GetAuthCredentialsOutput{}
	out.Body = CredentialsBody(input.Body)
	return out, nil
}
