package addresses

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bazaar-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)
	return svc
}

func sampleInput() AddressInput {
	return AddressInput{
		FullName:   " Ayse Yilmaz ",
		Line1:      "Istiklal Cd. 10",
		City:       "Istanbul",
		PostalCode: "34430",
		Country:    "tr",
	}
}

func TestCreateNormalizesAndValidates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	address, err := svc.Create(ctx, uuid.New(), sampleInput())
	require.NoError(t, err)
	assert.Equal(t, "Ayse Yilmaz", address.FullName)
	assert.Equal(t, "TR", address.Country)

	_, err = svc.Create(ctx, uuid.New(), AddressInput{FullName: "x"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestSnapshotIsDetachedFromLaterEdits(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	buyer := uuid.New()

	address, err := svc.Create(ctx, buyer, sampleInput())
	require.NoError(t, err)

	snapshot, err := svc.Snapshot(ctx, buyer, address.ID)
	require.NoError(t, err)
	assert.Equal(t, "Istanbul", snapshot.City)

	moved := sampleInput()
	moved.City = "Ankara"
	_, err = svc.Update(ctx, buyer, address.ID, moved)
	require.NoError(t, err)

	assert.Equal(t, "Istanbul", snapshot.City)
	fresh, err := svc.Snapshot(ctx, buyer, address.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ankara", fresh.City)
}

func TestSnapshotScopedToBuyer(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	address, err := svc.Create(ctx, uuid.New(), sampleInput())
	require.NoError(t, err)

	_, err = svc.Snapshot(ctx, uuid.New(), address.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}
