// Package mocks provides testify mocks of the controller interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	m "github.com/mouse-blink/coverguard/internal/model"
)

// MockUI is a mock implementation of controller.UI.
type MockUI struct {
	mock.Mock
}

// NewMockUI creates a MockUI whose expectations are asserted on cleanup.
func NewMockUI(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockUI {
	mockUI := &MockUI{}
	mockUI.Mock.Test(t)

	t.Cleanup(func() { mockUI.AssertExpectations(t) })

	return mockUI
}

// MockUI_Expecter wraps the typed expectation helpers.
type MockUI_Expecter struct {
	mock *mock.Mock
}

// EXPECT returns the typed expectation helpers.
func (_m *MockUI) EXPECT() *MockUI_Expecter {
	return &MockUI_Expecter{mock: &_m.Mock}
}

// DisplayWarnings mocks controller.UI.DisplayWarnings.
func (_m *MockUI) DisplayWarnings(ctx context.Context, warnings []string) {
	_m.Called(ctx, warnings)
}

// DisplayWarnings registers an expectation.
func (_e *MockUI_Expecter) DisplayWarnings(ctx interface{}, warnings interface{}) *mock.Call {
	return _e.mock.On("DisplayWarnings", ctx, warnings)
}

// DisplayReport mocks controller.UI.DisplayReport.
func (_m *MockUI) DisplayReport(ctx context.Context, report m.CoverageReport) error {
	ret := _m.Called(ctx, report)

	if rf, ok := ret.Get(0).(func(context.Context, m.CoverageReport) error); ok {
		return rf(ctx, report)
	}

	return ret.Error(0)
}

// DisplayReport registers an expectation.
func (_e *MockUI_Expecter) DisplayReport(ctx interface{}, report interface{}) *mock.Call {
	return _e.mock.On("DisplayReport", ctx, report)
}

// DisplayDocument mocks controller.UI.DisplayDocument.
func (_m *MockUI) DisplayDocument(ctx context.Context, document string) error {
	ret := _m.Called(ctx, document)

	if rf, ok := ret.Get(0).(func(context.Context, string) error); ok {
		return rf(ctx, document)
	}

	return ret.Error(0)
}

// DisplayDocument registers an expectation.
func (_e *MockUI_Expecter) DisplayDocument(ctx interface{}, document interface{}) *mock.Call {
	return _e.mock.On("DisplayDocument", ctx, document)
}
