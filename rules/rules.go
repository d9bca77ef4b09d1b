//go:build ruleguard

// Package gorules contains the ruleguard checks run by golangci-lint. They keep the
// codebase on the module logger, the categorized error builder and current Go idioms.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo flags goroutines that pair Add(1) with a deferred Done.
//
//	wg.Add(1)
//	go func() { defer wg.Done(); work() }()
//
// becomes
//
//	wg.Go(func() { work() })
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`go func() { defer $wg.Done(); $*_ }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { ... })").
		Suggest("$wg.Go(func() { $*_ })")

	m.Match(`$wg.Add(1)`).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("$wg.Go adds to the counter itself")
}

// ModuleLogger flags the standard logger outside of main packages. Packages log through
// their GetLogger() module logger.
func ModuleLogger(m dsl.Matcher) {
	m.Match(
		`log.Printf($*_)`,
		`log.Println($*_)`,
		`log.Print($*_)`,
		`log.Fatalf($*_)`,
		`log.Fatal($*_)`,
		`slog.Info($*_)`,
		`slog.Warn($*_)`,
		`slog.Error($*_)`,
		`slog.Debug($*_)`,
	).
		Where(!m.File().PkgPath.Matches(`/internal/logger$`)).
		Report("log through the package GetLogger() instead")
}

// CategorizedErrors flags plain sentinel construction with the standard errors package
// in internal packages, where errors carry a category for HTTP status mapping and
// telemetry.
func CategorizedErrors(m dsl.Matcher) {
	m.Import("errors")

	m.Match(`errors.New($msg)`).
		Where(m["msg"].Type.Is("string") && m.File().PkgPath.Matches(`/internal/`) &&
			!m.File().PkgPath.Matches(`/internal/errors$`) && !m.File().Name.Matches(`_test\.go$`)).
		Report("use the internal errors builder, or errors.NewStd for a sentinel")
}

// TestingContext flags background contexts in tests, which outlive the test.
func TestingContext(m dsl.Matcher) {
	m.Match(
		`$ctx := context.Background()`,
		`$ctx := context.TODO()`,
		`$fn(context.Background(), $*_)`,
		`$fn(context.TODO(), $*_)`,
	).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("use t.Context() in tests")
}

// TimeSince flags hand-written elapsed time computations.
func TimeSince(m dsl.Matcher) {
	m.Match(`time.Now().Sub($t)`).
		Report("use time.Since($t)").
		Suggest("time.Since($t)")

	m.Match(`$t.Sub(time.Now())`).
		Report("use time.Until($t)").
		Suggest("time.Until($t)")
}
