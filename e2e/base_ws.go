package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"doc-sync/auth"
	ws "doc-sync/infrastructure/websocket"
)

const frameTimeout = 5 * time.Second

type BaseSyncSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSyncSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.SyncAddr == "" {
		s.T().Skip("SYNC_ADDR not set, skipping e2e suite")
	}
}

// Token mints a credential for a seeded user. The suite shares the signing
// key with the server, so no auth endpoint is needed.
func (s *BaseSyncSuite) Token(id string) string {
	userID, err := uuid.Parse(id)
	s.Require().NoError(err, "Invalid user id in environment: "+id)

	token, err := auth.GenerateToken(userID, time.Minute)
	s.Require().NoError(err)
	return token
}

// Dial opens a websocket connection with logging, colors, and JSON debugging
func (s *BaseSyncSuite) Dial(t *testing.T, name string, token string) *wsSession {
	// 1. Print a colorized header for the connection step in logs
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)

	// 2. Connect with the bearer token in the handshake
	url := fmt.Sprintf("ws://%s/ws", s.Config.SyncAddr)
	headers := http.Header{}
	if token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := gws.DefaultDialer.Dial(url, headers)
	s.Require().NoError(err, "Failed to connect to sync server at "+url)

	return &wsSession{t: t, suite: s, conn: conn, name: name}
}

// wsSession wraps one websocket connection with frame logging.
type wsSession struct {
	t     *testing.T
	suite *BaseSyncSuite
	conn  *gws.Conn
	name  string
}

func (c *wsSession) Close() {
	if c == nil {
		return
	}
	_ = c.conn.Close()
}

func (c *wsSession) Send(eventType string, payload any) {
	data, err := json.Marshal(payload)
	c.suite.Require().NoError(err)

	envelope := ws.Envelope{Type: eventType, Payload: data}
	c.log("SEND", envelope)
	c.suite.Require().NoError(c.conn.WriteJSON(envelope))
}

// Expect reads frames until one of the wanted type arrives, failing the
// suite on timeout. Frames of other types are logged and dropped.
func (c *wsSession) Expect(eventType string) ws.Envelope {
	deadline := time.Now().Add(frameTimeout)
	for {
		c.suite.Require().NoError(c.conn.SetReadDeadline(deadline))

		var envelope ws.Envelope
		err := c.conn.ReadJSON(&envelope)
		c.suite.Require().NoError(err, "%s: no %q frame within %v", c.name, eventType, frameTimeout)

		c.log("RECV", envelope)
		if envelope.Type == eventType {
			return envelope
		}
	}
}

// ExpectError asserts the next error frame carries the given code.
func (c *wsSession) ExpectError(code string) {
	envelope := c.Expect(ws.TypeError)

	var wireErr struct {
		Code string `json:"code"`
	}
	c.suite.Require().NoError(json.Unmarshal(envelope.Payload, &wireErr))
	c.suite.Require().Equal(code, wireErr.Code)
}

// ExpectSilence asserts no frame arrives within the grace period. Used to
// check that a sender never receives its own broadcast back. The read
// timeout poisons the connection, so this must be the session's last read.
func (c *wsSession) ExpectSilence(grace time.Duration) {
	c.suite.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(grace)))

	var envelope ws.Envelope
	err := c.conn.ReadJSON(&envelope)
	if err == nil {
		c.log("RECV", envelope)
		c.suite.Require().Failf("unexpected frame", "%s received %q while silence was expected", c.name, envelope.Type)
	}
}

func (c *wsSession) log(direction string, envelope ws.Envelope) {
	line := fmt.Sprintf("WS [%s] %s %s", c.name, direction, envelope.Type)
	if c.suite.Config.DebugJSON {
		body, _ := json.Marshal(envelope)
		line += "\n" + string(body)
	}
	c.t.Log(line)
}

// JoinedSession dials, joins the document and consumes the snapshot frame.
func (s *BaseSyncSuite) JoinedSession(t *testing.T, name string, userID string) (*wsSession, ws.DocumentStatePayload) {
	session := s.Dial(t, name, s.Token(userID))
	session.Send(ws.TypeJoinDocument, ws.JoinDocumentPayload{DocumentID: s.Config.DocumentID})

	envelope := session.Expect(ws.TypeDocumentState)
	var state ws.DocumentStatePayload
	s.Require().NoError(json.Unmarshal(envelope.Payload, &state))
	s.Require().Equal(s.Config.DocumentID, state.DocumentID)
	return session, state
}
