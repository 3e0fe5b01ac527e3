package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/driveline/driveline/internal/domain/model"
	"github.com/driveline/driveline/internal/mocks"
)

func TestDispatcher_Recipients(t *testing.T) {
	ctx := context.Background()

	t.Run("individual context is its own recipient", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		d, err := NewDispatcher(mocks.NewMockBindingStore(ctrl))
		require.NoError(t, err)

		got, err := d.Recipients(ctx, &model.JobDescriptor{ContextKind: model.ContextIndividual, ContextID: "U1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"U1"}, got)
	})

	t.Run("shared context is sorted and de-duplicated", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		bindings := mocks.NewMockBindingStore(ctrl)
		bindings.EXPECT().ListRecipients(gomock.Any(), "G1").Return([]string{"U2", "U1", " ", "U2"}, nil)
		d, err := NewDispatcher(bindings)
		require.NoError(t, err)

		got, err := d.Recipients(ctx, &model.JobDescriptor{ContextKind: model.ContextShared, ContextID: "G1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"U1", "U2"}, got)
	})

	t.Run("shared context without bindings", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		bindings := mocks.NewMockBindingStore(ctrl)
		bindings.EXPECT().ListRecipients(gomock.Any(), "G2").Return(nil, nil)
		d, err := NewDispatcher(bindings)
		require.NoError(t, err)

		got, err := d.Recipients(ctx, &model.JobDescriptor{ContextKind: model.ContextShared, ContextID: "G2"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("binding store error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		bindings := mocks.NewMockBindingStore(ctrl)
		boom := errors.New("connection refused")
		bindings.EXPECT().ListRecipients(gomock.Any(), "G1").Return(nil, boom)
		d, err := NewDispatcher(bindings)
		require.NoError(t, err)

		_, err = d.Recipients(ctx, &model.JobDescriptor{ContextKind: model.ContextShared, ContextID: "G1"})
		require.ErrorIs(t, err, boom)
	})

	t.Run("unknown kind", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		d, err := NewDispatcher(mocks.NewMockBindingStore(ctrl))
		require.NoError(t, err)

		_, err = d.Recipients(ctx, &model.JobDescriptor{ContextKind: "room", ContextID: "R1"})
		require.ErrorIs(t, err, model.ErrInvalidDescriptor)
	})
}

func TestNewDispatcher_RequiresBindings(t *testing.T) {
	_, err := NewDispatcher(nil)
	require.Error(t, err)
}
