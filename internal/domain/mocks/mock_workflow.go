// Package mocks provides testify mocks of the domain interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mouse-blink/coverguard/internal/domain"
	m "github.com/mouse-blink/coverguard/internal/model"
)

// MockWorkflow is a mock implementation of domain.Workflow.
type MockWorkflow struct {
	mock.Mock
}

// NewMockWorkflow creates a MockWorkflow whose expectations are asserted on cleanup.
func NewMockWorkflow(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockWorkflow {
	mockWorkflow := &MockWorkflow{}
	mockWorkflow.Mock.Test(t)

	t.Cleanup(func() { mockWorkflow.AssertExpectations(t) })

	return mockWorkflow
}

// Check mocks domain.Workflow.Check.
func (_m *MockWorkflow) Check(ctx context.Context, args domain.CheckArgs) (m.CoverageReport, error) {
	ret := _m.Called(ctx, args)

	if rf, ok := ret.Get(0).(func(context.Context, domain.CheckArgs) (m.CoverageReport, error)); ok {
		return rf(ctx, args)
	}

	report, _ := ret.Get(0).(m.CoverageReport)

	return report, ret.Error(1)
}

// Merge mocks domain.Workflow.Merge.
func (_m *MockWorkflow) Merge(ctx context.Context, args domain.MergeArgs) error {
	ret := _m.Called(ctx, args)

	if rf, ok := ret.Get(0).(func(context.Context, domain.MergeArgs) error); ok {
		return rf(ctx, args)
	}

	return ret.Error(0)
}

// Convert mocks domain.Workflow.Convert.
func (_m *MockWorkflow) Convert(ctx context.Context, args domain.ConvertArgs) error {
	ret := _m.Called(ctx, args)

	if rf, ok := ret.Get(0).(func(context.Context, domain.ConvertArgs) error); ok {
		return rf(ctx, args)
	}

	return ret.Error(0)
}
