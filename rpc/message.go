package rpc

import (
	"encoding/json"
	"fmt"
)

// MessageType names one operation on the boundary between the host and the
// worker context.  The set is closed: the worker rejects types it does not
// know.
type MessageType string

const (
	TypeInit                  MessageType = "init"
	TypeUpdateConfig          MessageType = "update-config"
	TypeGetAuthURL            MessageType = "get-auth-url"
	TypeRequestAccessToken    MessageType = "request-access-token"
	TypeRequestCustomGrant    MessageType = "request-custom-grant"
	TypeRefreshAccessToken    MessageType = "refresh-access-token"
	TypeRevokeAccessToken     MessageType = "revoke-access-token"
	TypeSignOut               MessageType = "sign-out"
	TypeSetSessionState       MessageType = "set-session-state"
	TypeStartAutoRefreshToken MessageType = "start-auto-refresh-token"
	TypeHTTPRequest           MessageType = "http-request"
	TypeHTTPRequestAll        MessageType = "http-request-all"
	TypeEnableHTTPHandler     MessageType = "enable-http-handler"
	TypeDisableHTTPHandler    MessageType = "disable-http-handler"
	TypeGetBasicUserInfo      MessageType = "get-basic-user-info"
	TypeGetDecodedIDToken     MessageType = "get-decoded-id-token"
	TypeGetIDToken            MessageType = "get-id-token"
	TypeGetServiceEndpoints   MessageType = "get-oidc-service-endpoints"
	TypeGetConfigData         MessageType = "get-config-data"
	TypeGetSignOutURL         MessageType = "get-sign-out-url"
	TypeGetSessionStatus      MessageType = "get-session-status"
)

// Out-of-band notification types.  These are pushed from the worker without a
// matching request and never receive a Response.
const (
	TypeRequestStart   MessageType = "request-start"
	TypeRequestFinish  MessageType = "request-finish"
	TypeRequestSuccess MessageType = "request-success"
	TypeRequestError   MessageType = "request-error"
)

// Message is the typed envelope sent across the execution boundary.  A
// Message is immutable once sent: the payload is serialized at construction
// so later mutation of the source value cannot leak across the boundary.
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a Message with the payload serialized into the
// envelope.  A nil payload produces an envelope with no data.
func NewMessage(t MessageType, payload interface{}) (Message, error) {
	const op = "rpc.NewMessage"
	if t == "" {
		return Message{}, fmt.Errorf("%s: message type is empty: %w", op, ErrInvalidParameter)
	}
	m := Message{Type: t}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("%s: unable to marshal payload: %w", op, err)
		}
		m.Data = data
	}
	return m, nil
}

// Response is the worker's reply to one Message.  Exactly one of Data/Error
// is meaningful per the Success value.  Blob optionally carries a binary part
// that the channel attaches to the deserialized payload.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Blob    []byte          `json:"blob,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// NewSuccessResponse serializes payload into a successful Response.
func NewSuccessResponse(payload interface{}, blob []byte) (Response, error) {
	const op = "rpc.NewSuccessResponse"
	r := Response{Success: true, Blob: blob}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Response{}, fmt.Errorf("%s: unable to marshal payload: %w", op, err)
		}
		r.Data = data
	}
	return r, nil
}

// NewErrorResponse serializes info into a failed Response.  A nil info
// produces a failure with no error payload.
func NewErrorResponse(info *ErrorInfo) Response {
	r := Response{Success: false}
	if info != nil {
		// ErrorInfo marshalling cannot fail: it is a struct of strings.
		data, _ := json.Marshal(info)
		r.Error = data
	}
	return r
}

// ErrorInfo is the structured error payload serialized across the boundary
// when an operation fails in the worker context.
type ErrorInfo struct {
	Message     string `json:"message"`
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
}

// BlobReceiver is implemented by response payloads that can accept the
// binary part of a Response.
type BlobReceiver interface {
	AttachBlob(blob []byte)
}
