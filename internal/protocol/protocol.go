package protocol

import (
	"KeeBridge/internal/crypto"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Version — версия протокола, совместимая с расширениями KeePassHttp.
const Version = "1.8.4.2"

// Команды протокола.
const (
	TestAssociate    = "test-associate"
	Associate        = "associate"
	GetLogins        = "get-logins"
	GetLoginsCount   = "get-logins-count"
	GetAllLogins     = "get-all-logins"
	SetLogin         = "set-login"
	GeneratePassword = "generate-password"
)

// ErrDecode — входящее сообщение не разобрано.
var ErrDecode = errors.New("malformed request")

// Request — декодированный запрос. Двоичные поля уже сняты с base64,
// поля Url/SubmitUrl/Realm/Login/Password/Uuid остаются зашифрованными.
type Request struct {
	RequestType   string
	SortSelection bool
	TriggerUnlock bool

	ID       string
	Nonce    []byte
	Verifier []byte
	Key      []byte

	URL       []byte
	SubmitURL []byte
	Realm     []byte
	Login     []byte
	Password  []byte
	UUID      []byte
}

// StringField — дополнительное поле записи в ответе.
type StringField struct {
	Key   []byte
	Value []byte
}

// Entry — найденная запись; все значения зашифрованы общим ключом клиента.
type Entry struct {
	Name         []byte
	Login        []byte
	Password     []byte
	UUID         []byte
	StringFields []StringField
}

// Response — конверт ответа. Нулевые значения не сериализуются,
// кроме Entries, которые выводятся, если не nil.
type Response struct {
	RequestType string
	Success     bool
	Error       string
	ID          string
	Count       *int
	Version     string
	Hash        string
	Nonce       []byte
	Verifier    []byte
	Entries     []Entry
}

// NewResponse создаёт пустой ответ на команду с отпечатком хранилища.
func NewResponse(requestType, hash string) *Response {
	return &Response{RequestType: requestType, Hash: hash, Version: Version}
}

type wireRequest struct {
	RequestType   string `json:"RequestType"`
	SortSelection string `json:"SortSelection,omitempty"`
	TriggerUnlock string `json:"TriggerUnlock,omitempty"`
	Login         string `json:"Login,omitempty"`
	Password      string `json:"Password,omitempty"`
	Uuid          string `json:"Uuid,omitempty"`
	Url           string `json:"Url,omitempty"`
	SubmitUrl     string `json:"SubmitUrl,omitempty"`
	Key           string `json:"Key,omitempty"`
	Id            string `json:"Id,omitempty"`
	Verifier      string `json:"Verifier,omitempty"`
	Nonce         string `json:"Nonce,omitempty"`
	Realm         string `json:"Realm,omitempty"`
}

type wireStringField struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

type wireEntry struct {
	Name         string            `json:"Name"`
	Login        string            `json:"Login"`
	Password     string            `json:"Password,omitempty"`
	Uuid         string            `json:"Uuid"`
	StringFields []wireStringField `json:"StringFields,omitempty"`
}

type wireResponse struct {
	RequestType string       `json:"RequestType"`
	Error       string       `json:"Error,omitempty"`
	Success     bool         `json:"Success"`
	Id          string       `json:"Id,omitempty"`
	Count       *int         `json:"Count,omitempty"`
	Version     string       `json:"Version,omitempty"`
	Hash        string       `json:"Hash,omitempty"`
	Entries     *[]wireEntry `json:"Entries,omitempty"`
	Nonce       string       `json:"Nonce,omitempty"`
	Verifier    string       `json:"Verifier,omitempty"`
}

// DecodeRequest читает JSON‑запрос и снимает base64 с двоичных полей.
// Любая ошибка оборачивает ErrDecode.
func DecodeRequest(r io.Reader) (*Request, error) {
	var w wireRequest
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if w.RequestType == "" {
		return nil, fmt.Errorf("%w: missing RequestType", ErrDecode)
	}

	req := &Request{
		RequestType:   w.RequestType,
		SortSelection: w.SortSelection == "true",
		TriggerUnlock: w.TriggerUnlock == "true",
		ID:            w.Id,
	}
	fields := []struct {
		name string
		src  string
		dst  *[]byte
	}{
		{"Nonce", w.Nonce, &req.Nonce},
		{"Verifier", w.Verifier, &req.Verifier},
		{"Key", w.Key, &req.Key},
		{"Url", w.Url, &req.URL},
		{"SubmitUrl", w.SubmitUrl, &req.SubmitURL},
		{"Realm", w.Realm, &req.Realm},
		{"Login", w.Login, &req.Login},
		{"Password", w.Password, &req.Password},
		{"Uuid", w.Uuid, &req.UUID},
	}
	for _, f := range fields {
		if f.src == "" {
			continue
		}
		b, err := base64.StdEncoding.DecodeString(f.src)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s is not base64", ErrDecode, f.name)
		}
		*f.dst = b
	}
	if len(req.Nonce) != crypto.NonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes", ErrDecode, crypto.NonceSize)
	}
	return req, nil
}

// EncodeResponse пишет ответ в каноническом JSON с base64 для двоичных полей.
func EncodeResponse(w io.Writer, resp *Response) error {
	out := wireResponse{
		RequestType: resp.RequestType,
		Error:       resp.Error,
		Success:     resp.Success,
		Id:          resp.ID,
		Count:       resp.Count,
		Version:     resp.Version,
		Hash:        resp.Hash,
		Nonce:       b64(resp.Nonce),
		Verifier:    b64(resp.Verifier),
	}
	if resp.Entries != nil {
		entries := make([]wireEntry, 0, len(resp.Entries))
		for _, e := range resp.Entries {
			we := wireEntry{
				Name:     b64(e.Name),
				Login:    b64(e.Login),
				Password: b64(e.Password),
				Uuid:     b64(e.UUID),
			}
			for _, f := range e.StringFields {
				we.StringFields = append(we.StringFields, wireStringField{Key: b64(f.Key), Value: b64(f.Value)})
			}
			entries = append(entries, we)
		}
		out.Entries = &entries
	}
	return json.NewEncoder(w).Encode(out)
}

func b64(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(b)
}
