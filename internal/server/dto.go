package server

import "slmchat/internal/domain"

type CredentialRequest struct {
	Token string `json:"token"`
}

type CredentialResponse struct {
	Valid  bool   `json:"valid"`
	Status string `json:"status"`
}

// SendMessageRequest omits parameters the client leaves at their defaults.
type SendMessageRequest struct {
	Message     string   `json:"message"`
	Model       string   `json:"model" validate:"required"`
	Temperature *float64 `json:"temperature" validate:"omitempty,gt=0,lte=1"`
	TopP        *float64 `json:"top_p" validate:"omitempty,gt=0,lte=1"`
	MaxLength   *int     `json:"max_length" validate:"omitempty,gte=20,lte=2040"`
}

// Params fills unset fields from defaults.
func (r SendMessageRequest) Params(defaults domain.Params) domain.Params {
	p := defaults
	if r.Temperature != nil {
		p.Temperature = *r.Temperature
	}
	if r.TopP != nil {
		p.TopP = *r.TopP
	}
	if r.MaxLength != nil {
		p.MaxLength = *r.MaxLength
	}
	return p
}

type SendMessageResponse struct {
	Accepted     bool                `json:"accepted"`
	Turn         *int                `json:"turn,omitempty"`
	Status       string              `json:"status"`
	Conversation domain.Conversation `json:"conversation"`
}

type DocumentResponse struct {
	FileName string `json:"file_name"`
	Chunks   int    `json:"chunks"`
	Summary  string `json:"summary"`
}

type SessionResponse struct {
	ID            string              `json:"id"`
	HasCredential bool                `json:"has_credential"`
	Status        string              `json:"status"`
	Conversation  domain.Conversation `json:"conversation"`
	Document      *DocumentResponse   `json:"document,omitempty"`
}

type UploadResponse struct {
	Result   domain.Result     `json:"result"`
	Document *DocumentResponse `json:"document,omitempty"`
}

type Bounds struct {
	MinTemperature float64 `json:"min_temperature"`
	MaxTemperature float64 `json:"max_temperature"`
	MinTopP        float64 `json:"min_top_p"`
	MaxTopP        float64 `json:"max_top_p"`
	MinMaxLength   int     `json:"min_max_length"`
	MaxMaxLength   int     `json:"max_max_length"`
}

type ModelsResponse struct {
	Models   []string      `json:"models"`
	Default  string        `json:"default"`
	Defaults domain.Params `json:"defaults"`
	Bounds   Bounds        `json:"bounds"`
}
