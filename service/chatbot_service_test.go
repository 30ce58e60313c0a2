package service

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-agent/domain"
	"payment-agent/money"
	"payment-agent/repository"
)

const testCompanyID = "12.345.678/0001-90"

var testNow = time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)

func fixtureBills() []domain.Bill {
	mk := func(id string, amount float64, rate float64, due time.Time) domain.Bill {
		return domain.Bill{
			ID:                id,
			CompanyID:         testCompanyID,
			Creditor:          "Fornecedor " + id,
			Amount:            money.FromFloat(amount),
			DailyInterestRate: decimal.NewFromFloat(rate),
			DueDate:           due,
		}
	}
	return []domain.Bill{
		mk("BOLETO_1", 4000, 0.01, time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)),
		mk("BOLETO_2", 3000, 0.02, time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)),
		mk("BOLETO_3", 1000, 0.01, time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)),
		mk("BOLETO_4", 2000, 0.01, time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC)),
	}
}

func newTestChatbot(t *testing.T, openingBalance float64) *ChatbotService {
	t.Helper()
	return newTestChatbotWithRepo(t, repository.NewBillRepositoryMemory(fixtureBills()), openingBalance)
}

func newTestChatbotWithRepo(t *testing.T, bills repository.BillRepository, openingBalance float64) *ChatbotService {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	svc := NewChatbotService(
		NewSessionManager(testCompanyID, "Célia", money.FromFloat(openingBalance)),
		bills,
		NewPlannerService(),
		repository.NewMockCache(),
		log,
	)
	svc.now = func() time.Time { return testNow }
	return svc
}

type failingBillRepo struct{}

func (failingBillRepo) FetchDueOnDate(string, time.Time) ([]domain.Bill, error) {
	return nil, errors.New("fonte de boletos indisponível")
}

func (failingBillRepo) FetchOverdue(string, time.Time) ([]domain.Bill, error) {
	return nil, errors.New("fonte de boletos indisponível")
}

func (failingBillRepo) FetchRange(string, time.Time, time.Time) ([]domain.Bill, error) {
	return nil, errors.New("fonte de boletos indisponível")
}

func (failingBillRepo) FetchByID(string, string) (*domain.Bill, error) {
	return nil, errors.New("fonte de boletos indisponível")
}

func TestGreetingShowsTodaySummary(t *testing.T) {
	svc := newTestChatbot(t, 10000)

	rc, state, err := svc.HandleTurn("s1", domain.IntentGreeting, domain.IntentParams{})
	require.NoError(t, err)

	assert.Equal(t, domain.ResponseWelcome, rc.Kind)
	assert.Equal(t, domain.StateDayOverview, state)
	require.NotNil(t, rc.Overview)
	assert.Equal(t, 2, rc.Overview.DueCount)
	assert.Equal(t, 1, rc.Overview.OverdueCount)
}

func TestGreetingDegradesWhenBillSourceFails(t *testing.T) {
	svc := newTestChatbotWithRepo(t, failingBillRepo{}, 10000)

	rc, state, err := svc.HandleTurn("s1", domain.IntentGreeting, domain.IntentParams{})
	require.NoError(t, err)

	assert.Equal(t, domain.ResponseWelcome, rc.Kind)
	assert.Equal(t, domain.StateMainMenu, state)
	assert.Nil(t, rc.Overview)
}

func TestViewTodayThenPayThenConfirm(t *testing.T) {
	svc := newTestChatbot(t, 10000)

	rc, state, err := svc.HandleTurn("s1", domain.IntentViewToday, domain.IntentParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseDayOverview, rc.Kind)
	assert.Equal(t, domain.StateDayOverview, state)
	require.NotNil(t, rc.Overview)
	assert.Equal(t, int64(700000), rc.Overview.DueTotal.Cents())
	assert.Equal(t, int64(100000), rc.Overview.OverdueTotal.Cents())
	require.NotNil(t, rc.Strategy)
	assert.Equal(t, domain.FullBalance, rc.Strategy.Kind)

	rc, state, err = svc.HandleTurn("s1", domain.IntentPay, domain.IntentParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseConfirmation, rc.Kind)
	assert.Equal(t, domain.StatePaymentConfirmation, state)
	require.NotNil(t, rc.Strategy)
	assert.Len(t, rc.Strategy.PayNow, 3)

	rc, state, err = svc.HandleTurn("s1", domain.IntentPay, domain.IntentParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseCommitted, rc.Kind)
	assert.Equal(t, domain.StateMainMenu, state)
	// 10000 - 4000 - 3000 - 1050 (boleto atrasado com 5 dias de juros).
	assert.Equal(t, int64(195000), rc.Balance.Cents())
}

func TestCommittedBillsDisappearFromLaterQueries(t *testing.T) {
	svc := newTestChatbot(t, 10000)

	_, _, err := svc.HandleTurn("s1", domain.IntentViewToday, domain.IntentParams{})
	require.NoError(t, err)
	_, _, err = svc.HandleTurn("s1", domain.IntentPay, domain.IntentParams{})
	require.NoError(t, err)
	_, _, err = svc.HandleTurn("s1", domain.IntentPay, domain.IntentParams{})
	require.NoError(t, err)

	rc, _, err := svc.HandleTurn("s1", domain.IntentViewToday, domain.IntentParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseNothingDue, rc.Kind)
}

func TestGoBackDiscardsPendingPayment(t *testing.T) {
	svc := newTestChatbot(t, 10000)

	_, _, err := svc.HandleTurn("s1", domain.IntentViewToday, domain.IntentParams{})
	require.NoError(t, err)
	_, _, err = svc.HandleTurn("s1", domain.IntentPay, domain.IntentParams{})
	require.NoError(t, err)

	rc, state, err := svc.HandleTurn("s1", domain.IntentGoBack, domain.IntentParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseCancelled, rc.Kind)
	assert.Equal(t, domain.StateMainMenu, state)
	assert.Equal(t, int64(1000000), rc.Balance.Cents())

	// Nada foi pago: a consulta seguinte mostra os mesmos boletos.
	rc, _, err = svc.HandleTurn("s1", domain.IntentViewToday, domain.IntentParams{})
	require.NoError(t, err)
	require.NotNil(t, rc.Overview)
	assert.Equal(t, 2, rc.Overview.DueCount)
}

func TestPayWithoutContextGuides(t *testing.T) {
	svc := newTestChatbot(t, 10000)

	_, _, err := svc.HandleTurn("s1", domain.IntentHelp, domain.IntentParams{})
	require.NoError(t, err)

	rc, state, err := svc.HandleTurn("s1", domain.IntentPay, domain.IntentParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseGuidance, rc.Kind)
	assert.Equal(t, domain.StateMainMenu, state)
}

func TestAwaitingDateReprompsUntilDateArrives(t *testing.T) {
	svc := newTestChatbot(t, 10000)

	rc, state, err := svc.HandleTurn("s1", domain.IntentViewDate, domain.IntentParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponsePromptDate, rc.Kind)
	assert.Equal(t, domain.StateAwaitingDate, state)

	rc, state, err = svc.HandleTurn("s1", domain.IntentUnknown, domain.IntentParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponsePromptDate, rc.Kind)
	assert.Equal(t, domain.StateAwaitingDate, state)

	rc, state, err = svc.HandleTurn("s1", domain.IntentUnknown, domain.IntentParams{
		Date: time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseDayOverview, rc.Kind)
	assert.Equal(t, domain.StateDayOverview, state)
	require.NotNil(t, rc.Overview)
	assert.Equal(t, 1, rc.Overview.DueCount)
}

func TestAwaitingDateAllowsNavigatingAway(t *testing.T) {
	svc := newTestChatbot(t, 10000)

	_, _, err := svc.HandleTurn("s1", domain.IntentViewDate, domain.IntentParams{})
	require.NoError(t, err)

	rc, state, err := svc.HandleTurn("s1", domain.IntentGoBack, domain.IntentParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseHelp, rc.Kind)
	assert.Equal(t, domain.StateMainMenu, state)
}

func TestRangeViewBuildsDashboard(t *testing.T) {
	svc := newTestChatbot(t, 10000)

	rc, state, err := svc.HandleTurn("s1", domain.IntentViewRange, domain.IntentParams{
		Date:    time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		EndDate: time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseRangeOverview, rc.Kind)
	assert.Equal(t, domain.StateRangeOverview, state)
	require.NotNil(t, rc.Dashboard)
	assert.Equal(t, "2026-09-15", rc.Dashboard.Start)
	require.NotEmpty(t, rc.Dashboard.TopValueDays)
	assert.Equal(t, "2026-09-15", rc.Dashboard.TopValueDays[0].Date)
	assert.Equal(t, int64(700000), rc.Dashboard.TopValueDays[0].Total.Cents())
	assert.Equal(t, 1, rc.Dashboard.OverdueCount)

	rc, _, err = svc.HandleTurn("s1", domain.IntentViewHighlights, domain.IntentParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseHighlights, rc.Kind)
	require.NotNil(t, rc.Dashboard)
	assert.NotEmpty(t, rc.Dashboard.UrgentView)
}

func TestRangeViewRejectsInvertedWindow(t *testing.T) {
	svc := newTestChatbot(t, 10000)

	_, state, err := svc.HandleTurn("s1", domain.IntentViewRange, domain.IntentParams{
		Date:    time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
		EndDate: time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRecoverableInput)
	assert.Equal(t, domain.StateMainMenu, state)
}

func TestOverdueListShowsLateBills(t *testing.T) {
	svc := newTestChatbot(t, 10000)

	rc, state, err := svc.HandleTurn("s1", domain.IntentViewOverdue, domain.IntentParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseOverdueList, rc.Kind)
	assert.Equal(t, domain.StateOverdueList, state)
	require.Len(t, rc.Overdue, 1)
	assert.Equal(t, "BOLETO_3", rc.Overdue[0].ID)
}

func TestBillDetailsWithoutContextGuides(t *testing.T) {
	svc := newTestChatbot(t, 10000)

	_, _, err := svc.HandleTurn("s1", domain.IntentHelp, domain.IntentParams{})
	require.NoError(t, err)

	rc, _, err := svc.HandleTurn("s1", domain.IntentViewDetails, domain.IntentParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseGuidance, rc.Kind)
}

func TestBillDetailsListsThenDrillsDown(t *testing.T) {
	svc := newTestChatbot(t, 10000)

	_, _, err := svc.HandleTurn("s1", domain.IntentViewToday, domain.IntentParams{})
	require.NoError(t, err)

	rc, state, err := svc.HandleTurn("s1", domain.IntentViewDetails, domain.IntentParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseBillList, rc.Kind)
	assert.Equal(t, domain.StateBillDetail, state)
	assert.Len(t, rc.Bills, 3)

	rc, _, err = svc.HandleTurn("s1", domain.IntentViewDetails, domain.IntentParams{BillID: "BOLETO_1"})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseBillDetail, rc.Kind)
	require.NotNil(t, rc.Bill)
	assert.Equal(t, "BOLETO_1", rc.Bill.ID)
}

func TestBillDetailsUnknownIDRecoversWithList(t *testing.T) {
	svc := newTestChatbot(t, 10000)

	_, _, err := svc.HandleTurn("s1", domain.IntentViewToday, domain.IntentParams{})
	require.NoError(t, err)

	rc, state, err := svc.HandleTurn("s1", domain.IntentViewDetails, domain.IntentParams{BillID: "BOLETO_999"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRecoverableInput)
	assert.Equal(t, domain.ResponseBillList, rc.Kind)
	assert.Equal(t, domain.StateBillDetail, state)
	assert.Len(t, rc.Bills, 3)
}

func TestFinancingOptionsArmsPendingStrategy(t *testing.T) {
	svc := newTestChatbot(t, 5000)

	_, _, err := svc.HandleTurn("s1", domain.IntentViewToday, domain.IntentParams{})
	require.NoError(t, err)

	rc, state, err := svc.HandleTurn("s1", domain.IntentViewFinancing, domain.IntentParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseFinancingComparison, rc.Kind)
	assert.Equal(t, domain.StatePaymentConfirmation, state)
	require.NotNil(t, rc.Comparison)
	// Total de planejamento 8050 (inclui juros acumulados) contra 5000.
	assert.Equal(t, int64(305000), rc.Comparison.Deficit.Cents())
	require.Len(t, rc.Comparison.Quotes, 3)

	rc, state, err = svc.HandleTurn("s1", domain.IntentPay, domain.IntentParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseCommitted, rc.Kind)
	assert.Equal(t, domain.StateMainMenu, state)
}

func TestFinancingOptionsWithSufficientBalanceGuides(t *testing.T) {
	svc := newTestChatbot(t, 50000)

	_, _, err := svc.HandleTurn("s1", domain.IntentViewToday, domain.IntentParams{})
	require.NoError(t, err)

	rc, _, err := svc.HandleTurn("s1", domain.IntentViewFinancing, domain.IntentParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseGuidance, rc.Kind)
}

func TestCollaboratorFailureLeavesSessionUntouched(t *testing.T) {
	svc := newTestChatbotWithRepo(t, failingBillRepo{}, 10000)

	_, _, err := svc.HandleTurn("s1", domain.IntentHelp, domain.IntentParams{})
	require.NoError(t, err)

	_, state, err := svc.HandleTurn("s1", domain.IntentViewToday, domain.IntentParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCollaborator)
	assert.Equal(t, domain.StateMainMenu, state)

	err = svc.sessions.WithSession("s1", func(sess *Session) error {
		assert.Nil(t, sess.Query)
		assert.Nil(t, sess.Pending)
		assert.Equal(t, int64(1000000), sess.Balance.Cents())
		return nil
	})
	require.NoError(t, err)
}

func TestRecordExchangeSnapshotsToCache(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	cache := repository.NewMockCache()

	svc := NewChatbotService(
		NewSessionManager(testCompanyID, "Célia", money.FromFloat(10000)),
		repository.NewBillRepositoryMemory(fixtureBills()),
		NewPlannerService(),
		cache,
		log,
	)
	svc.now = func() time.Time { return testNow }

	_, _, err := svc.HandleTurn("s1", domain.IntentGreeting, domain.IntentParams{})
	require.NoError(t, err)
	svc.RecordExchange("s1", "oi", "Olá, Célia!")

	snapshot, ok := cache.Get("session:s1")
	require.True(t, ok)
	assert.Contains(t, snapshot, "Olá, Célia!")

	history, balance, err := svc.History("s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "bot", history[1].Role)
	assert.Equal(t, int64(1000000), balance.Cents())
}
