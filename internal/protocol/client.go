package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

// EncodeRequest сериализует запрос на стороне клиента.
func EncodeRequest(w io.Writer, req *Request) error {
	out := wireRequest{
		RequestType: req.RequestType,
		Id:          req.ID,
		Nonce:       b64(req.Nonce),
		Verifier:    b64(req.Verifier),
		Key:         b64(req.Key),
		Url:         b64(req.URL),
		SubmitUrl:   b64(req.SubmitURL),
		Realm:       b64(req.Realm),
		Login:       b64(req.Login),
		Password:    b64(req.Password),
		Uuid:        b64(req.UUID),
	}
	if req.SortSelection {
		out.SortSelection = "true"
	}
	if req.TriggerUnlock {
		out.TriggerUnlock = "true"
	}
	return json.NewEncoder(w).Encode(out)
}

// DecodeResponse разбирает ответ сервера и снимает base64 с двоичных полей.
func DecodeResponse(r io.Reader) (*Response, error) {
	var w wireResponse
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	resp := &Response{
		RequestType: w.RequestType,
		Success:     w.Success,
		Error:       w.Error,
		ID:          w.Id,
		Count:       w.Count,
		Version:     w.Version,
		Hash:        w.Hash,
	}
	var err error
	if resp.Nonce, err = unb64("Nonce", w.Nonce); err != nil {
		return nil, err
	}
	if resp.Verifier, err = unb64("Verifier", w.Verifier); err != nil {
		return nil, err
	}
	if w.Entries == nil {
		return resp, nil
	}
	resp.Entries = make([]Entry, 0, len(*w.Entries))
	for _, we := range *w.Entries {
		var e Entry
		for _, f := range []struct {
			name string
			src  string
			dst  *[]byte
		}{
			{"Name", we.Name, &e.Name},
			{"Login", we.Login, &e.Login},
			{"Password", we.Password, &e.Password},
			{"Uuid", we.Uuid, &e.UUID},
		} {
			if *f.dst, err = unb64(f.name, f.src); err != nil {
				return nil, err
			}
		}
		for _, sf := range we.StringFields {
			k, err := unb64("StringFields.Key", sf.Key)
			if err != nil {
				return nil, err
			}
			v, err := unb64("StringFields.Value", sf.Value)
			if err != nil {
				return nil, err
			}
			e.StringFields = append(e.StringFields, StringField{Key: k, Value: v})
		}
		resp.Entries = append(resp.Entries, e)
	}
	return resp, nil
}

func unb64(name, s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: field %s is not base64", ErrDecode, name)
	}
	return b, nil
}
