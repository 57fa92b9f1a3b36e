package services

import (
	"CareDesk/exceptions"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorsDefaultSlotsAndAvailability(t *testing.T) {
	h := newHarness(t)
	doctors, err := h.directory.Doctors(context.Background(), patient, "d1", "")
	require.NoError(t, err)
	require.Len(t, doctors, 2)

	assert.Equal(t, "Cardiologist", doctors[0].Specialization)
	assert.Equal(t, []string{"10:00-11:00", "11:00-12:00"}, doctors[0].TimeSlots)
	assert.True(t, doctors[0].Available)

	assert.Equal(t, []string{"09:00-10:00", "10:00-11:00"}, doctors[1].TimeSlots)
	assert.True(t, doctors[1].Available)
}

func TestDirectoryCachesSuccessOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.backend.directoryErr = errors.New("connection refused")
	_, err := h.directory.Departments(ctx, patient, "")
	assert.ErrorIs(t, err, exceptions.ErrLookup)

	h.backend.directoryErr = nil
	departments, err := h.directory.Departments(ctx, patient, "")
	require.NoError(t, err)
	assert.Len(t, departments, 2)

	_, err = h.directory.Departments(ctx, patient, hospital)
	require.NoError(t, err)
	assert.Equal(t, 2, h.backend.departmentCalls, "second successful read comes from the cache")
}

func TestEmptyDirectoryIsNotAnError(t *testing.T) {
	h := newHarness(t)
	doctors, err := h.directory.Doctors(context.Background(), patient, "d2", "")
	require.NoError(t, err)
	assert.Empty(t, doctors)
}

func TestDirectoryIsScopedToSessionHospital(t *testing.T) {
	h := newHarness(t)
	_, err := h.directory.Departments(context.Background(), patient, "Other Hospital")
	assert.ErrorIs(t, err, exceptions.ErrForbidden)

	_, err = h.directory.Departments(context.Background(), supplier, "")
	assert.ErrorIs(t, err, exceptions.ErrForbidden, "suppliers have no directory access")
}
