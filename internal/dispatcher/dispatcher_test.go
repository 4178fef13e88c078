package dispatcher_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hray3182/gabay/internal/dispatcher"
	"github.com/hray3182/gabay/internal/dispatcher/mocks"
	"github.com/hray3182/gabay/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type DispatcherTestSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	contacts *mocks.MockContactResolver
	deliver  *mocks.MockDeliverer
	actions  *mocks.MockActionExecutor
	d        *dispatcher.Dispatcher
}

func (s *DispatcherTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.contacts = mocks.NewMockContactResolver(s.ctrl)
	s.deliver = mocks.NewMockDeliverer(s.ctrl)
	s.actions = mocks.NewMockActionExecutor(s.ctrl)
	s.d = dispatcher.New(s.contacts, s.deliver, s.actions, zerolog.Nop())
}

func (s *DispatcherTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherTestSuite))
}

func job(mutate func(r *models.Reminder)) dispatcher.Job {
	r := models.Reminder{
		ID:          "r1",
		OwnerID:     "100",
		Message:     "call mom",
		TriggerTime: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		Frequency:   models.FrequencyOnce,
		Status:      models.StatusPending,
	}
	if mutate != nil {
		mutate(&r)
	}
	return dispatcher.NewJob(r, r.TriggerTime)
}

func (s *DispatcherTestSuite) TestSelfReminderIsPrefixed() {
	s.deliver.EXPECT().Deliver(gomock.Any(), "100", "🔔 **Reminder:** call mom").Return(nil)

	s.NoError(s.d.Dispatch(context.Background(), job(nil)))
}

func (s *DispatcherTestSuite) TestRecipientResolvedThroughContacts() {
	s.contacts.EXPECT().ResolveRecipient(gomock.Any(), "100", "bob").Return("555", true, nil)
	s.deliver.EXPECT().Deliver(gomock.Any(), "555", "call mom").Return(nil)

	s.NoError(s.d.Dispatch(context.Background(), job(func(r *models.Reminder) { r.Recipient = "bob" })))
}

func (s *DispatcherTestSuite) TestUnknownRecipientFallsBackToRawString() {
	s.contacts.EXPECT().ResolveRecipient(gomock.Any(), "100", "@team").Return("", false, nil)
	s.deliver.EXPECT().Deliver(gomock.Any(), "@team", "call mom").Return(nil)

	s.NoError(s.d.Dispatch(context.Background(), job(func(r *models.Reminder) { r.Recipient = "@team" })))
}

func (s *DispatcherTestSuite) TestLookupErrorFallsBackToRawString() {
	s.contacts.EXPECT().ResolveRecipient(gomock.Any(), "100", "bob").Return("", false, errors.New("db down"))
	s.deliver.EXPECT().Deliver(gomock.Any(), "bob", "call mom").Return(nil)

	s.NoError(s.d.Dispatch(context.Background(), job(func(r *models.Reminder) { r.Recipient = "bob" })))
}

func (s *DispatcherTestSuite) TestRecipientResolvingToOwnerGetsPrefix() {
	s.contacts.EXPECT().ResolveRecipient(gomock.Any(), "100", "me").Return("100", true, nil)
	s.deliver.EXPECT().Deliver(gomock.Any(), "100", "🔔 **Reminder:** call mom").Return(nil)

	s.NoError(s.d.Dispatch(context.Background(), job(func(r *models.Reminder) { r.Recipient = "me" })))
}

func (s *DispatcherTestSuite) TestInvokeRunsActionInsteadOfDelivery() {
	payload := `{"to":"boss@example.com","subject":"report","body":"attached"}`
	s.actions.EXPECT().ExecuteAction(gomock.Any(), "100", "email", payload).Return(nil)

	s.NoError(s.d.Dispatch(context.Background(), job(func(r *models.Reminder) {
		r.ActionTag = "email"
		r.Payload = payload
	})))
}

func (s *DispatcherTestSuite) TestDeliveryFailureIsMarked() {
	s.deliver.EXPECT().Deliver(gomock.Any(), "100", gomock.Any()).Return(errors.New("chat not found"))

	err := s.d.Dispatch(context.Background(), job(nil))
	s.Error(err)
	s.True(errors.Is(err, models.ErrDelivery))
}

func (s *DispatcherTestSuite) TestActionFailureIsMarked() {
	s.actions.EXPECT().ExecuteAction(gomock.Any(), "100", "email", "x").Return(errors.New("smtp timeout"))

	err := s.d.Dispatch(context.Background(), job(func(r *models.Reminder) {
		r.ActionTag = "email"
		r.Payload = "x"
	}))
	s.True(errors.Is(err, models.ErrActionExecution))
}
