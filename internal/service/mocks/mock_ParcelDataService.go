// Package mocks provides test doubles for the parcel data service.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	model "github.com/sells-group/zoning-cli/internal/model"
)

// MockParcelDataService is a mock type for the ParcelDataService interface.
type MockParcelDataService struct {
	mock.Mock
}

// GetAllParcels provides a mock function with given fields: ctx
func (_m *MockParcelDataService) GetAllParcels(ctx context.Context) ([]model.Parcel, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for GetAllParcels")
	}

	var r0 []model.Parcel
	if rf, ok := ret.Get(0).(func(context.Context) ([]model.Parcel, error)); ok {
		return rf(ctx)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Parcel)
	}
	return r0, ret.Error(1)
}

// GetZoningVocabulary provides a mock function with given fields: ctx
func (_m *MockParcelDataService) GetZoningVocabulary(ctx context.Context) ([]string, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for GetZoningVocabulary")
	}

	var r0 []string
	if rf, ok := ret.Get(0).(func(context.Context) ([]string, error)); ok {
		return rf(ctx)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}
	return r0, ret.Error(1)
}

// UpdateZoning provides a mock function with given fields: ctx, ids, zoningType
func (_m *MockParcelDataService) UpdateZoning(ctx context.Context, ids []model.ParcelID, zoningType string) error {
	ret := _m.Called(ctx, ids, zoningType)

	if len(ret) == 0 {
		panic("no return value specified for UpdateZoning")
	}

	if rf, ok := ret.Get(0).(func(context.Context, []model.ParcelID, string) error); ok {
		return rf(ctx, ids, zoningType)
	}
	return ret.Error(0)
}

// GetStats provides a mock function with given fields: ctx, ids
func (_m *MockParcelDataService) GetStats(ctx context.Context, ids []model.ParcelID) (model.StatsSummary, error) {
	ret := _m.Called(ctx, ids)

	if len(ret) == 0 {
		panic("no return value specified for GetStats")
	}

	if rf, ok := ret.Get(0).(func(context.Context, []model.ParcelID) (model.StatsSummary, error)); ok {
		return rf(ctx, ids)
	}
	return ret.Get(0).(model.StatsSummary), ret.Error(1)
}

// SimulateZoningUpdate provides a mock function with given fields: ctx, ids, zoningType
func (_m *MockParcelDataService) SimulateZoningUpdate(ctx context.Context, ids []model.ParcelID, zoningType string) (model.StatsSummary, error) {
	ret := _m.Called(ctx, ids, zoningType)

	if len(ret) == 0 {
		panic("no return value specified for SimulateZoningUpdate")
	}

	if rf, ok := ret.Get(0).(func(context.Context, []model.ParcelID, string) (model.StatsSummary, error)); ok {
		return rf(ctx, ids, zoningType)
	}
	return ret.Get(0).(model.StatsSummary), ret.Error(1)
}

// NewMockParcelDataService creates a new instance of MockParcelDataService.
// It also registers a testing interface on the mock and a cleanup function
// to assert the mocks expectations.
func NewMockParcelDataService(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockParcelDataService {
	m := &MockParcelDataService{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
