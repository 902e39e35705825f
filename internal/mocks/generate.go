// Package mocks provides mock implementations of the ingestion ports for testing.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the interfaces in internal/core.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockRunRecordRepository(ctrl)
//	repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)
package mocks

// Generate mock for SourceAdapter interface from internal/core package.
// This creates MockSourceAdapter with methods: Name, Fetch
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=source_adapter_mock.go github.com/target/mmk-job-ingest/internal/core SourceAdapter

// Generate mock for Prober interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=prober_mock.go github.com/target/mmk-job-ingest/internal/core Prober

// Generate mock for PostingSink interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=posting_sink_mock.go github.com/target/mmk-job-ingest/internal/core PostingSink

// Generate mock for RunRecordRepository interface from internal/core package.
// This creates MockRunRecordRepository with methods: Insert, ListSince, DeleteBefore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=run_record_repository_mock.go github.com/target/mmk-job-ingest/internal/core RunRecordRepository

// Generate mock for SmokeTestRepository interface from internal/core package.
// This creates MockSmokeTestRepository with methods: Insert, Latest, DeleteBefore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=smoke_test_repository_mock.go github.com/target/mmk-job-ingest/internal/core SmokeTestRepository

// Generate mock for CredentialStore interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=credential_store_mock.go github.com/target/mmk-job-ingest/internal/core CredentialStore

// Generate mock for SourceStateRepository interface from internal/core package.
// This creates MockSourceStateRepository with methods: Get, List, SetEnabled
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=source_state_repository_mock.go github.com/target/mmk-job-ingest/internal/core SourceStateRepository
