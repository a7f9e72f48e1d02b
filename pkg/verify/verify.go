// Package verify submits contract sources to a Blockscout (etherscan
// compatible) explorer and polls the verification result.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/axintera/axctl/pkg/artifact"
	"github.com/axintera/axctl/pkg/config"
	"github.com/axintera/axctl/pkg/net"
	"github.com/ethereum/go-ethereum/common"
)

const (
	codeFormatStandardJSON = "solidity-standard-json-input"

	statusOK = "1"

	resultPass    = "Pass - Verified"
	resultPending = "Pending in queue"

	// PollIntervalDefault is the status poll period.
	PollIntervalDefault = 5 * time.Second
)

var ErrVerificationFailed = errors.New("verification failed")

// Request is one contract to verify.
type Request struct {
	Address common.Address
	// ContractName is the fully qualified source:Name.
	ContractName    string
	CompilerVersion string
	// SourceCode is the solc standard JSON input.
	SourceCode string
	// ConstructorArgs is the ABI encoded constructor args without 0x.
	ConstructorArgs string
}

// NewRequest builds the request for a contract deployed from art.
func NewRequest(art *artifact.Artifact, info *artifact.BuildInfo, addr common.Address, constructorArgs []byte) (*Request, error) {
	if art == nil || info == nil {
		return nil, errors.New("artifact and build info required")
	}
	return &Request{
		Address:         addr,
		ContractName:    art.FullyQualifiedName(),
		CompilerVersion: info.CompilerVersion(),
		SourceCode:      string(info.Input),
		ConstructorArgs: common.Bytes2Hex(constructorArgs),
	}, nil
}

// Response is the envelope of every explorer API reply.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

// Client talks to one explorer.
type Client struct {
	apiURL     string
	browserURL string
	apiKey     string
}

// NewClient returns a client for the explorer of a network.
func NewClient(e *config.Explorer) (*Client, error) {
	if e == nil || e.APIURL == "" {
		return nil, errors.New("explorer api url required")
	}
	return &Client{
		apiURL:     e.APIURL,
		browserURL: e.BrowserURL,
		apiKey:     e.APIKey,
	}, nil
}

// AddressURL returns the explorer page of addr.
func (c *Client) AddressURL(addr common.Address) string {
	if c.browserURL == "" {
		return ""
	}
	return strings.TrimSuffix(c.browserURL, "/") + "/address/" + addr.Hex()
}

// Submit sends the source and returns the verification guid. A contract
// the explorer already knows returns an empty guid and no error.
func (c *Client) Submit(ctx context.Context, req *Request) (string, error) {
	if req == nil || req.ContractName == "" || req.SourceCode == "" || req.CompilerVersion == "" {
		return "", errors.New("verify request requires contract name, compiler version and source")
	}

	form := url.Values{}
	form.Set("apikey", c.apiKey)
	form.Set("module", "contract")
	form.Set("action", "verifysourcecode")
	form.Set("contractaddress", req.Address.Hex())
	form.Set("sourceCode", req.SourceCode)
	form.Set("codeformat", codeFormatStandardJSON)
	form.Set("contractname", req.ContractName)
	form.Set("compilerversion", req.CompilerVersion)
	// misspelled in the explorer API
	form.Set("constructorArguements", strings.TrimPrefix(req.ConstructorArgs, "0x"))

	var resp Response
	if err := net.PostForm(ctx, c.apiURL, form, &resp); err != nil {
		return "", fmt.Errorf("error submitting %s: %w", req.ContractName, err)
	}

	if resp.Status != statusOK {
		if isAlreadyVerified(resp.Result) {
			slog.Info("contract already verified", "address", req.Address.Hex())
			return "", nil
		}
		return "", fmt.Errorf("%w: %s: %s", ErrVerificationFailed, resp.Message, resp.Result)
	}

	slog.Debug("verification submitted", "address", req.Address.Hex(), "guid", resp.Result)
	return resp.Result, nil
}

// Status returns the verification state of guid. done is false while the
// explorer still has it queued.
func (c *Client) Status(ctx context.Context, guid string) (done bool, err error) {
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("module", "contract")
	q.Set("action", "checkverifystatus")
	q.Set("guid", guid)

	var resp Response
	if err := net.GetJSON(ctx, c.apiURL+"?"+q.Encode(), &resp); err != nil {
		return false, fmt.Errorf("error checking status of %s: %w", guid, err)
	}

	switch {
	case strings.HasPrefix(resp.Result, resultPass), isAlreadyVerified(resp.Result):
		return true, nil
	case strings.HasPrefix(resp.Result, resultPending):
		return false, nil
	default:
		return true, fmt.Errorf("%w: %s", ErrVerificationFailed, resp.Result)
	}
}

// Wait polls Status until the verification passes, fails or ctx is done.
func (c *Client) Wait(ctx context.Context, guid string, interval time.Duration) error {
	if guid == "" {
		return nil
	}
	if interval <= 0 {
		interval = PollIntervalDefault
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := c.Status(ctx, guid)
		if done || err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for verification %s: %w", guid, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Verify submits req and waits for the result.
func (c *Client) Verify(ctx context.Context, req *Request, interval time.Duration) error {
	guid, err := c.Submit(ctx, req)
	if err != nil {
		return err
	}
	return c.Wait(ctx, guid, interval)
}

// matches both "Already Verified" and "Contract source code already verified"
func isAlreadyVerified(result string) bool {
	return strings.Contains(strings.ToLower(result), "already verified")
}
