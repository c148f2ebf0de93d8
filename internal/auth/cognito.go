package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	flowUserPassword   = "USER_PASSWORD_AUTH"
	flowRefreshToken   = "REFRESH_TOKEN_AUTH"
	initiateAuthTarget = "AWSCognitoIdentityProviderService.InitiateAuth"
)

// Cognito performs InitiateAuth calls against an AWS Cognito user pool client.
type Cognito struct {
	clientID   string
	endpoint   string
	httpClient *http.Client
	now        func() time.Time
}

func NewCognito(region, clientID string, httpClient *http.Client) *Cognito {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Cognito{
		clientID:   clientID,
		endpoint:   fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/", region),
		httpClient: httpClient,
		now:        time.Now,
	}
}

func (c *Cognito) InitiateAuth(ctx context.Context, username, password string) (*oauth2.Token, error) {
	return c.initiateAuth(ctx, flowUserPassword, map[string]string{
		"USERNAME": username,
		"PASSWORD": password,
	})
}

func (c *Cognito) RefreshAuth(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("no refresh token held")
	}
	return c.initiateAuth(ctx, flowRefreshToken, map[string]string{
		"REFRESH_TOKEN": refreshToken,
	})
}

type initiateAuthRequest struct {
	AuthFlow       string            `json:"AuthFlow"`
	ClientID       string            `json:"ClientId"`
	AuthParameters map[string]string `json:"AuthParameters"`
}

type initiateAuthResponse struct {
	AuthenticationResult *struct {
		AccessToken  string `json:"AccessToken"`
		ExpiresIn    int64  `json:"ExpiresIn"`
		IDToken      string `json:"IdToken"`
		RefreshToken string `json:"RefreshToken"`
		TokenType    string `json:"TokenType"`
	} `json:"AuthenticationResult"`
	ChallengeName string `json:"ChallengeName"`
}

type cognitoError struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

func (c *Cognito) initiateAuth(ctx context.Context, flow string, params map[string]string) (*oauth2.Token, error) {
	payload, err := json.Marshal(initiateAuthRequest{
		AuthFlow:       flow,
		ClientID:       c.clientID,
		AuthParameters: params,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-amz-json-1.1")
	req.Header.Set("X-Amz-Target", initiateAuthTarget)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cognito %s: %w", flow, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cognito %s: read body: %w", flow, err)
	}

	if resp.StatusCode >= 300 {
		var apiErr cognitoError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Type != "" {
			return nil, fmt.Errorf("cognito %s %d: %s: %s", flow, resp.StatusCode, apiErr.Type, apiErr.Message)
		}
		return nil, fmt.Errorf("cognito %s %d: %s", flow, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out initiateAuthResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("cognito %s: decode: %w", flow, err)
	}
	if out.AuthenticationResult == nil {
		if out.ChallengeName != "" {
			return nil, fmt.Errorf("cognito %s: unsupported challenge %s", flow, out.ChallengeName)
		}
		return nil, fmt.Errorf("cognito %s: no authentication result", flow)
	}

	result := out.AuthenticationResult
	tok := &oauth2.Token{
		AccessToken:  result.AccessToken,
		TokenType:    result.TokenType,
		RefreshToken: result.RefreshToken,
		Expiry:       c.now().Add(time.Duration(result.ExpiresIn) * time.Second),
	}
	return WithIDToken(tok, result.IDToken), nil
}
