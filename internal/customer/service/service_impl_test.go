package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/kanakku/internal/clock"
	"github.com/smallbiznis/kanakku/internal/customer/domain"
	"github.com/smallbiznis/kanakku/internal/customer/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&domain.Customer{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	}), clk
}

func TestCreateRegisteredCustomer(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	customer, err := svc.Create(ctx, domain.CreateCustomerRequest{
		Name:     " Mumbai Distributors ",
		Email:    "Accounts <accounts@mumbai.example>",
		Phone:    "+91 98200 12345",
		GSTIN:    "27AAPFU0939F1ZV",
		Metadata: map[string]any{"segment": "wholesale"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Mumbai Distributors", customer.Name)
	assert.Equal(t, "accounts@mumbai.example", customer.Email)
	assert.Equal(t, "9820012345", customer.Phone)
	assert.Equal(t, "27", customer.StateCode)
	assert.True(t, customer.IsRegistered())

	got, err := svc.GetByID(ctx, domain.GetCustomerRequest{ID: customer.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, customer.ID, got.ID)
	assert.Equal(t, "wholesale", got.Metadata["segment"])
}

func TestCreateWalkInWithoutState(t *testing.T) {
	svc, _ := setup(t)

	customer, err := svc.Create(context.Background(), domain.CreateCustomerRequest{Name: "Cash Sale"})
	require.NoError(t, err)
	assert.Empty(t, customer.StateCode)
	assert.False(t, customer.IsRegistered())
}

func TestCreateValidation(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.CreateCustomerRequest
		err  error
	}{
		{name: "name", req: domain.CreateCustomerRequest{}, err: domain.ErrInvalidName},
		{name: "email", req: domain.CreateCustomerRequest{Name: "a", Email: "bad"}, err: domain.ErrInvalidEmail},
		{name: "phone", req: domain.CreateCustomerRequest{Name: "a", Phone: "12345"}, err: domain.ErrInvalidPhone},
		{name: "gstin", req: domain.CreateCustomerRequest{Name: "a", GSTIN: "27AAPFU0939F1ZA"}, err: domain.ErrInvalidGSTIN},
		{name: "state", req: domain.CreateCustomerRequest{Name: "a", StateCode: "00"}, err: domain.ErrInvalidStateCode},
		{name: "mismatch", req: domain.CreateCustomerRequest{Name: "a", GSTIN: "27AAPFU0939F1ZV", StateCode: "29"}, err: domain.ErrStateMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.req)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestListFiltersAndPaginates(t *testing.T) {
	svc, clk := setup(t)
	ctx := context.Background()

	for _, name := range []string{"Alpha Stores", "Beta Mart", "Alpha Foods"} {
		_, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: name})
		require.NoError(t, err)
		clk.Advance(time.Second)
	}

	resp, err := svc.List(ctx, domain.ListCustomerRequest{Name: "alpha"})
	require.NoError(t, err)
	require.Len(t, resp.Customers, 2)
	assert.Equal(t, "Alpha Foods", resp.Customers[0].Name)

	page, err := svc.List(ctx, domain.ListCustomerRequest{PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page.Customers, 2)
	assert.True(t, page.HasMore)
}

func TestGetByIDErrors(t *testing.T) {
	svc, _ := setup(t)

	_, err := svc.GetByID(context.Background(), domain.GetCustomerRequest{ID: "abc"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	_, err = svc.GetByID(context.Background(), domain.GetCustomerRequest{ID: "12345"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNormalizePhone(t *testing.T) {
	for in, want := range map[string]string{
		"":              "",
		"9847012345":    "9847012345",
		"09847012345":   "9847012345",
		"919847012345":  "9847012345",
		"+91-98470-123": "",
	} {
		got, err := NormalizePhone(in)
		if want == "" && in != "" {
			assert.ErrorIs(t, err, domain.ErrInvalidPhone, in)
			continue
		}
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
}
