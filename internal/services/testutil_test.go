// internal/services/testutil_test.go
package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/modelmint/modelmint-backend/internal/config"
	"github.com/modelmint/modelmint-backend/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single shared connection keeps every session on the same in-memory
	// database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Store{},
		&models.Product{},
		&models.Generation{},
		&models.Order{},
		&models.OrderItem{},
		&models.Royalty{},
		&models.Transfer{},
		&models.WebhookEvent{},
		&models.DeadLetterEntry{},
		&models.AuditLog{},
		&models.AdminNotification{},
	))

	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Payment: config.PaymentConfig{
			PlatformFeeBps:   250,
			MinTransferCents: 100,
		},
	}
}

// fakePayoutProvider records transfer requests instead of calling out.
type fakePayoutProvider struct {
	transfers     []fakeTransfer
	failWith      error
	accountStatus *AccountStatus
	accountErr    error
}

type fakeTransfer struct {
	AmountCents   int64
	AccountID     string
	TransferGroup string
}

func (f *fakePayoutProvider) CreateTransfer(amountCents int64, destinationAccountID, transferGroup string) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	f.transfers = append(f.transfers, fakeTransfer{
		AmountCents:   amountCents,
		AccountID:     destinationAccountID,
		TransferGroup: transferGroup,
	})
	return fmt.Sprintf("tr_fake_%d", len(f.transfers)), nil
}

func (f *fakePayoutProvider) RetrieveAccountStatus(accountID string) (*AccountStatus, error) {
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	if f.accountStatus != nil {
		return f.accountStatus, nil
	}
	return &AccountStatus{
		ChargesEnabled:   true,
		PayoutsEnabled:   true,
		DetailsSubmitted: true,
	}, nil
}

// fakeObjectStore keeps stored objects in memory and serves fetches from a
// canned map.
type fakeObjectStore struct {
	fetchable map[string][]byte
	stored    map[string][]byte
	fetchErr  error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{
		fetchable: make(map[string][]byte),
		stored:    make(map[string][]byte),
	}
}

func (f *fakeObjectStore) PutBytes(data []byte, key, contentType string) (string, error) {
	f.stored[key] = data
	return "https://assets.test/" + key, nil
}

func (f *fakeObjectStore) FetchBytes(url string) ([]byte, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	data, ok := f.fetchable[url]
	if !ok {
		return nil, errors.New("not found: " + url)
	}
	return data, nil
}

func (f *fakeObjectStore) DeleteObject(key string) error {
	delete(f.stored, key)
	return nil
}

type fakeWatermarker struct {
	applied []string
}

func (f *fakeWatermarker) Apply(imageURL, contentID string) (string, error) {
	f.applied = append(f.applied, imageURL)
	return imageURL + "?wm=1", nil
}

func (f *fakeWatermarker) Remove(imageURL, contentID string) (string, error) {
	return imageURL, nil
}

// failingProcessor always errors; used to drive events through the retry and
// dead-letter paths.
type failingProcessor struct {
	source models.WebhookSource
	calls  int
	err    error
}

func (p *failingProcessor) Source() models.WebhookSource { return p.source }

func (p *failingProcessor) Process(event *models.WebhookEvent) error {
	p.calls++
	return p.err
}
