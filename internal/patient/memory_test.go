package patient

import (
	"context"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakePatient(id, uhid string) Patient {
	p := Patient{
		ID:    id,
		Name:  gofakeit.Name(),
		Phone: gofakeit.Numerify("##########"),
	}
	if uhid != "" {
		p.UHID = &uhid
	}
	return p
}

func TestMemoryDirectory_Lookup(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory()
	require.NoError(t, d.Add(fakePatient("PAT_00000001", "UHID1")))

	ok, err := d.Exists(ctx, "PAT_00000001")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Exists(ctx, "PAT_MISSING")
	require.NoError(t, err)
	assert.False(t, ok)

	p, err := d.GetByUHID(ctx, "UHID1")
	require.NoError(t, err)
	assert.Equal(t, "PAT_00000001", p.ID)

	_, err = d.Get(ctx, "PAT_MISSING")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = d.GetByUHID(ctx, "UHID404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDirectory_DuplicateUHID(t *testing.T) {
	d := NewMemoryDirectory()
	require.NoError(t, d.Add(fakePatient("PAT_A", "UHID1")))

	err := d.Add(fakePatient("PAT_B", "UHID1"))
	assert.ErrorIs(t, err, ErrDuplicateUHID)

	// Re-adding the same patient keeps its UHID.
	assert.NoError(t, d.Add(fakePatient("PAT_A", "UHID1")))
}
