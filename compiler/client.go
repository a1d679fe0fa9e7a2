package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const compilePath = "compile"

// Artifact is one compiled deployable produced by the artifact service.
type Artifact struct {
	Name            string `json:"name"`
	ABI             string `json:"abi"`
	Bytecode        string `json:"bytecode"`
	CompilerVersion string `json:"compiler_version"`
	Source          string `json:"source"`
}

// Request describes what to compile for one contract. Params carries the
// type-specific template constants.
type Request struct {
	ContractID uint64                 `json:"contract_id"`
	Type       string                 `json:"type"`
	Params     map[string]interface{} `json:"params"`
}

// Client requests compiled contract artifacts from the compiler service.
type Client struct {
	endpoint string
}

// NewClient returns a new compiler service client.
func NewClient(endpoint string) *Client {
	return &Client{endpoint: endpoint}
}

// Compile submits the contract configuration and returns one artifact per
// deployable. An ICO yields a token and a crowdsale artifact unless the
// token is reused.
func (c *Client) Compile(ctx context.Context, req *Request) ([]*Artifact, error) {
	url := fmt.Sprintf("%s/%s", c.endpoint, compilePath)
	var artifacts []*Artifact
	return artifacts, httpPost(ctx, url, req, &artifacts)
}

type compilerResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

func httpPost(ctx context.Context, url string, body, result interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		url,
		bytes.NewReader(payload),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	cr := &compilerResponse{}
	if err := json.Unmarshal(raw, cr); err != nil {
		return err
	}

	if cr.Code != http.StatusOK {
		return fmt.Errorf("request compiler service failed, err:%s", cr.Msg)
	}

	return json.Unmarshal(cr.Data, result)
}
