package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/axintera/axctl/pkg/artifact"
	"github.com/axintera/axctl/pkg/artifact/artifacttest"
	"github.com/axintera/axctl/pkg/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

func testRequest() *Request {
	return &Request{
		Address:         testAddr,
		ContractName:    "contracts/RewardGauge.sol:RewardGauge",
		CompilerVersion: "v0.8.28+commit.7893614a",
		SourceCode:      `{"language":"Solidity"}`,
		ConstructorArgs: "0x00ff",
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(&config.Explorer{APIURL: srv.URL + "/api", BrowserURL: "https://evm-testnet.flowscan.io/", APIKey: "abc"})
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)
	_, err = NewClient(&config.Explorer{})
	assert.Error(t, err)

	c, err := NewClient(config.DefaultNetworks()[config.NetworkFlowTestnet].Explorer)
	require.NoError(t, err)
	assert.Equal(t, "https://evm-testnet.flowscan.io/address/"+testAddr.Hex(), c.AddressURL(testAddr))

	noBrowser, err := NewClient(&config.Explorer{APIURL: "http://x"})
	require.NoError(t, err)
	assert.Empty(t, noBrowser.AddressURL(testAddr))
}

func TestSubmit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "abc", r.PostForm.Get("apikey"))
		assert.Equal(t, "contract", r.PostForm.Get("module"))
		assert.Equal(t, "verifysourcecode", r.PostForm.Get("action"))
		assert.Equal(t, testAddr.Hex(), r.PostForm.Get("contractaddress"))
		assert.Equal(t, "solidity-standard-json-input", r.PostForm.Get("codeformat"))
		assert.Equal(t, "contracts/RewardGauge.sol:RewardGauge", r.PostForm.Get("contractname"))
		assert.Equal(t, "v0.8.28+commit.7893614a", r.PostForm.Get("compilerversion"))
		assert.Equal(t, "00ff", r.PostForm.Get("constructorArguements"))
		assert.Equal(t, `{"language":"Solidity"}`, r.PostForm.Get("sourceCode"))
		w.Write([]byte(`{"status":"1","message":"OK","result":"guid-123"}`))
	})

	guid, err := c.Submit(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "guid-123", guid)
}

func TestSubmit_AlreadyVerified(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status":"0","message":"NOTOK","result":"Smart-contract already verified."}`))
	})

	guid, err := c.Submit(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Empty(t, guid)
}

func TestSubmit_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status":"0","message":"NOTOK","result":"Invalid compiler version"}`))
	})

	_, err := c.Submit(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrVerificationFailed)

	_, err = c.Submit(context.Background(), &Request{})
	assert.Error(t, err)
}

func TestSubmit_HTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	_, err := c.Submit(context.Background(), testRequest())
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		result  string
		done    bool
		wantErr bool
	}{
		{"Pass - Verified", true, false},
		{"Already Verified", true, false},
		{"Pending in queue", false, false},
		{"Fail - Unable to verify", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.result, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "checkverifystatus", r.URL.Query().Get("action"))
				assert.Equal(t, "guid-1", r.URL.Query().Get("guid"))
				w.Write([]byte(`{"status":"0","message":"","result":"` + tt.result + `"}`))
			})
			done, err := c.Status(context.Background(), "guid-1")
			assert.Equal(t, tt.done, done)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrVerificationFailed)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWait_PollsUntilPass(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.Write([]byte(`{"status":"0","result":"Pending in queue"}`))
			return
		}
		w.Write([]byte(`{"status":"1","result":"Pass - Verified"}`))
	})

	require.NoError(t, c.Wait(context.Background(), "guid", 10*time.Millisecond))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWait_ContextDone(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status":"0","result":"Pending in queue"}`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Wait(ctx, "guid", 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWait_EmptyGUID(t *testing.T) {
	c, err := NewClient(&config.Explorer{APIURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	assert.NoError(t, c.Wait(context.Background(), "", 0))
}

func TestVerify(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Write([]byte(`{"status":"1","message":"OK","result":"g"}`))
			return
		}
		w.Write([]byte(`{"status":"1","result":"Pass - Verified"}`))
	})
	assert.NoError(t, c.Verify(context.Background(), testRequest(), 10*time.Millisecond))
}

func TestNewRequest(t *testing.T) {
	dir := t.TempDir()
	artifacttest.Write(t, dir, "RewardGauge", `[]`, []byte{0x60, 0x00})
	store := artifact.NewStore(dir)
	art, err := store.Load("RewardGauge")
	require.NoError(t, err)
	info, err := store.BuildInfo(art)
	require.NoError(t, err)

	req, err := NewRequest(art, info, testAddr, []byte{0xab, 0xcd})
	require.NoError(t, err)
	assert.Equal(t, "contracts/RewardGauge.sol:RewardGauge", req.ContractName)
	assert.Equal(t, "v"+artifacttest.SolcLongVersion, req.CompilerVersion)
	assert.JSONEq(t, artifacttest.SolcInput, req.SourceCode)
	assert.Equal(t, "abcd", req.ConstructorArgs)

	_, err = NewRequest(nil, info, testAddr, nil)
	assert.Error(t, err)
}
