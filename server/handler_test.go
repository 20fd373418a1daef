package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/mcp-bridge/backend"
)

func newTestServer(t *testing.T, cfg backend.Config, backendOptions []backend.Option, options ...Option) (*httptest.Server, *backend.Service) {
	t.Helper()
	backendOptions = append([]backend.Option{backend.WithLogger(zerolog.Nop())}, backendOptions...)
	engine, err := backend.New(cfg, backendOptions...)
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	options = append([]Option{WithLogger(zerolog.Nop())}, options...)
	srv, err := New(engine, options...)
	require.NoError(t, err)
	httpServer := srv.HTTP(context.Background(), "")
	testServer := httptest.NewServer(httpServer.Handler)
	t.Cleanup(testServer.Close)
	return testServer, engine
}

func newEchoServer(t *testing.T, options ...Option) (*httptest.Server, *backend.Service) {
	return newTestServer(t, backend.Config{Command: "cat"}, nil, options...)
}

func TestHandleMCP_RequestResponse(t *testing.T) {
	testServer, _ := newEchoServer(t)
	request := `{"jsonrpc":"2.0","id":1,"method":"ping"}`

	resp, err := http.Post(testServer.URL+"/mcp", "application/json", strings.NewReader(request))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var reply map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	assert.Equal(t, "ping", reply["method"])
	assert.EqualValues(t, 1, reply["id"])
}

func TestHandleMCP_Notification(t *testing.T) {
	testServer, _ := newEchoServer(t)

	resp, err := http.Post(testServer.URL+"/mcp", "application/json", strings.NewReader(`{"jsonrpc":"2.0","method":"ping"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	var ack map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.Equal(t, "notification_sent", ack["status"])
}

func TestHandleMCP_InvalidPayload(t *testing.T) {
	testServer, _ := newEchoServer(t)

	resp, err := http.Post(testServer.URL+"/mcp", "application/json", strings.NewReader("not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var reply struct {
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	require.NotNil(t, reply.Error)
	assert.Contains(t, reply.Error.Message, "invalid JSON-RPC payload")
}

func TestHandleMCP_Timeout(t *testing.T) {
	testServer, _ := newTestServer(t,
		backend.Config{Command: "sleep", Args: []string{"30"}},
		[]backend.Option{backend.WithTimeout(100 * time.Millisecond)})

	resp, err := http.Post(testServer.URL+"/mcp", "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
}

func TestHandleMCP_DuplicateId(t *testing.T) {
	testServer, engine := newTestServer(t,
		backend.Config{Command: "sleep", Args: []string{"30"}},
		[]backend.Option{backend.WithTimeout(2 * time.Second)})

	go func() {
		_, _ = engine.Call(context.Background(), json.RawMessage(`7`), []byte(`{"jsonrpc":"2.0","id":7,"method":"a"}`))
	}()
	require.Eventually(t, func() bool { return engine.Pending() == 1 }, time.Second, 10*time.Millisecond)

	resp, err := http.Post(testServer.URL+"/mcp", "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":7,"method":"b"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHandleMessages_FireAndForget(t *testing.T) {
	testServer, _ := newTestServer(t, backend.Config{Command: "sleep", Args: []string{"30"}}, nil)

	// the backend never replies, yet the ack is immediate even for a request with an id
	resp, err := http.Post(testServer.URL+"/messages", "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	var ack map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.Equal(t, "accepted", ack["status"])
}

func TestHandleHealth(t *testing.T) {
	testServer, engine := newEchoServer(t)

	resp, err := http.Get(testServer.URL + "/health")
	require.NoError(t, err)
	var status map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", status["status"])
	assert.EqualValues(t, engine.Pid(), status["pid"])

	engine.Close()
	<-engine.Done()

	resp, err = http.Get(testServer.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestBearerAuthorization(t *testing.T) {
	testServer, _ := newEchoServer(t, WithAuthToken("secret"))

	// missing credential
	resp, err := http.Post(testServer.URL+"/messages", "application/json", strings.NewReader(`{"jsonrpc":"2.0","method":"ping"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")

	// wrong credential
	req, _ := http.NewRequest(http.MethodPost, testServer.URL+"/messages", strings.NewReader(`{"jsonrpc":"2.0","method":"ping"}`))
	req.Header.Set("Authorization", "Bearer nope")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// matching credential
	req, _ = http.NewRequest(http.MethodPost, testServer.URL+"/messages", strings.NewReader(`{"jsonrpc":"2.0","method":"ping"}`))
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	// health stays open
	resp, err = http.Get(testServer.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJWTAuthorization(t *testing.T) {
	testServer, _ := newEchoServer(t, WithAuthToken("signing-key"), WithJWTAuth(true))

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "bridge-client",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("signing-key"))
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodPost, testServer.URL+"/messages", strings.NewReader(`{"jsonrpc":"2.0","method":"ping"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	// the raw shared key is not a valid JWT
	req, _ = http.NewRequest(http.MethodPost, testServer.URL+"/messages", strings.NewReader(`{"jsonrpc":"2.0","method":"ping"}`))
	req.Header.Set("Authorization", "Bearer signing-key")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleSSE_Stream(t *testing.T) {
	testServer, _ := newEchoServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, testServer.URL+"/sse", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: open", strings.TrimSpace(line))
	// session payload of the open event
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "data: "))

	// a fire-and-forget send is echoed back onto the stream
	post, err := http.Post(testServer.URL+"/messages", "application/json", strings.NewReader(`{"jsonrpc":"2.0","method":"ping"}`))
	require.NoError(t, err)
	post.Body.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "no event received")
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, "ping") {
			var event map[string]interface{}
			payload := strings.TrimPrefix(strings.TrimSpace(line), "data: ")
			require.NoError(t, json.Unmarshal([]byte(payload), &event))
			assert.Equal(t, "ping", event["method"])
			break
		}
	}
}

func TestHandleSSE_CorrelatedReplyForOtherCaller(t *testing.T) {
	testServer, _ := newEchoServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, testServer.URL+"/sse", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)

	// replies to /messages sends surface only on the stream
	body := `{"jsonrpc":"2.0","id":11,"method":"ping"}`
	post, err := http.Post(testServer.URL+"/messages", "application/json", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	post.Body.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "no event received")
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, `"id":11`) {
			break
		}
	}
}
