package responder

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentwire/conversation"
	"github.com/hupe1980/agentwire/core"
	"github.com/hupe1980/agentwire/internal/testutil"
	"github.com/hupe1980/agentwire/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockModel struct {
	mock.Mock
}

func (m *mockModel) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	args := m.Called(ctx, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*model.Response), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockModel) Info() model.Info { return model.Info{Name: "mock", Provider: "test"} }

type mockSender struct {
	mock.Mock
}

func (s *mockSender) Send(ctx context.Context, to, content, conversationID string) error {
	return s.Called(ctx, to, content, conversationID).Error(0)
}

func newResponder(m model.Model, optFns ...func(o *Options)) *Responder {
	return New(m, append([]func(o *Options){func(o *Options) {
		o.CallDelay = 0
		o.AgentName = "Sentinel"
	}}, optFns...)...)
}

func TestRespond_AppendsExchange(t *testing.T) {
	m := &mockModel{}
	m.On("Generate", mock.Anything, mock.MatchedBy(func(req model.Request) bool {
		return req.Instructions == "You are Sentinel talking to p1" &&
			len(req.Turns) == 1 && req.Turns[0] == core.UserTurn("hello")
	})).Return(&model.Response{Text: "hi there", Usage: &model.TokenUsage{TotalTokens: 7}}, nil).Once()

	r := newResponder(m, func(o *Options) {
		o.Instruction = NewInstructionFromText("You are {{.agent_name}} talking to {{.peer_id}}")
	})
	msg := testutil.NewMessageBuilder().From("p1").Content("hello").Build()

	reply, err := r.Respond(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)
	assert.Equal(t, []core.Turn{core.UserTurn("hello"), core.AssistantTurn("hi there")}, r.Store().History("p1"))
	m.AssertExpectations(t)
}

func TestRespond_SendsHistoryToModel(t *testing.T) {
	m := &mockModel{}
	m.On("Generate", mock.Anything, mock.Anything).Return(&model.Response{Text: "ok"}, nil)

	r := newResponder(m)
	ctx := context.Background()
	_, err := r.Respond(ctx, testutil.NewMessageBuilder().From("p1").Content("one").Build())
	require.NoError(t, err)
	_, err = r.Respond(ctx, testutil.NewMessageBuilder().From("p1").Content("two").Build())
	require.NoError(t, err)

	last := m.Calls[1].Arguments.Get(1).(model.Request)
	assert.Equal(t, []core.Turn{core.UserTurn("one"), core.AssistantTurn("ok"), core.UserTurn("two")}, last.Turns)
}

func TestRespond_ModelErrorUsesFallbackAndKeepsHistory(t *testing.T) {
	m := &mockModel{}
	m.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	r := newResponder(m)
	reply, err := r.Respond(context.Background(), testutil.NewMessageBuilder().From("p1").Content("hi").Build())
	require.NoError(t, err)
	assert.Equal(t, DefaultFallbackReply, reply)
	assert.Empty(t, r.Store().History("p1"))
}

func TestRespond_ModelErrorWithoutFallback(t *testing.T) {
	m := &mockModel{}
	boom := errors.New("boom")
	m.On("Generate", mock.Anything, mock.Anything).Return(nil, boom)

	r := newResponder(m, func(o *Options) { o.FallbackReply = "" })
	_, err := r.Respond(context.Background(), testutil.NewMessageBuilder().Build())
	assert.ErrorIs(t, err, boom)
}

func TestRespond_EmptyCompletion(t *testing.T) {
	m := &mockModel{}
	m.On("Generate", mock.Anything, mock.Anything).Return(&model.Response{Text: "  "}, nil)

	r := newResponder(m)
	reply, err := r.Respond(context.Background(), testutil.NewMessageBuilder().From("p1").Content("?").Build())
	require.NoError(t, err)
	assert.Equal(t, DefaultEmptyReply, reply)
	assert.Equal(t, core.AssistantTurn(DefaultEmptyReply), r.Store().History("p1")[1])
}

func TestRespond_SharedStoreIsBounded(t *testing.T) {
	store := conversation.NewInMemoryStore(func(o *conversation.Options) { o.MaxTurns = 4 })
	r := newResponder(model.EchoModel{}, func(o *Options) { o.Store = store })

	for _, c := range []string{"a", "b", "c"} {
		_, err := r.Respond(context.Background(), testutil.NewMessageBuilder().From("p1").Content(c).Build())
		require.NoError(t, err)
	}
	h := store.History("p1")
	require.Len(t, h, 4)
	assert.Equal(t, core.UserTurn("b"), h[0])
}

func TestRespond_InstructionProviderError(t *testing.T) {
	m := &mockModel{}
	r := newResponder(m, func(o *Options) {
		o.Instruction = NewInstructionFromFunc(func(context.Context, core.Message) (string, error) {
			return "", errors.New("no prompt")
		})
	})
	_, err := r.Respond(context.Background(), testutil.NewMessageBuilder().Build())
	assert.ErrorContains(t, err, "no prompt")
	m.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestReplyHandler(t *testing.T) {
	r := newResponder(model.EchoModel{Prefix: "re: "})
	s := &mockSender{}
	s.On("Send", mock.Anything, "p1", "re: ping", "c1").Return(nil).Once()

	h := ReplyHandler(r, s)
	msg := testutil.NewMessageBuilder().From("p1").Content("ping").Conversation("c1").Build()
	require.NoError(t, h.HandleMessage(context.Background(), msg))
	s.AssertExpectations(t)
}

func TestReplyHandler_SendFailureSurfaces(t *testing.T) {
	r := newResponder(model.EchoModel{})
	s := &mockSender{}
	sendErr := &core.SendError{PeerID: "p1", Err: core.ErrNotConnected}
	s.On("Send", mock.Anything, "p1", "x", "").Return(sendErr)

	err := ReplyHandler(r, s).HandleMessage(context.Background(), testutil.NewMessageBuilder().From("p1").Content("x").Build())
	assert.ErrorIs(t, err, core.ErrNotConnected)
}

func TestInstruction(t *testing.T) {
	static := NewInstructionFromText("static")
	assert.True(t, static.IsStatic())
	got, err := static.Resolve(context.Background(), core.Message{})
	require.NoError(t, err)
	assert.Equal(t, "static", got)

	dynamic := NewInstructionFromProvider(Func(func(_ context.Context, msg core.Message) (string, error) {
		return "for " + msg.FromPeerID, nil
	}))
	assert.False(t, dynamic.IsStatic())
	got, err = dynamic.Resolve(context.Background(), core.Message{FromPeerID: "p7"})
	require.NoError(t, err)
	assert.Equal(t, "for p7", got)
}
