package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeServices(t *testing.T, src string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "internal", "services")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "svc.go"), []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return root
}

func TestAuditFlagsDirectWorkflowWrites(t *testing.T) {
	root := writeServices(t, `package services

type svc struct {
	lessons  repos.LessonRepo
	subs     repos.SubmissionRepo
	agg      domainagg.DuplicateResolutionAggregate
}

func (s *svc) Resolve() {
	s.lessons.FullDeleteByIDs(nil, nil)
	s.subs.Create(nil, nil)
	s.agg.ResolveGroup(nil, nil)
	s.lessons.GetByID(nil, nil)
}
`)
	rep, err := audit(root)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(rep.Violations) != 1 {
		t.Fatalf("expected 1 violation, got %+v", rep.Violations)
	}
	v := rep.Violations[0]
	if v.Field != "lessons" || v.Call != "FullDeleteByIDs" || v.Method != "Resolve" || v.Line != 10 {
		t.Fatalf("unexpected violation %+v", v)
	}
	if rep.AggregateCalls != 1 {
		t.Fatalf("expected 1 aggregate call, got %d", rep.AggregateCalls)
	}
}

func TestAuditServicesPackageIsClean(t *testing.T) {
	rep, err := audit("..")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(rep.Violations) > 0 {
		t.Fatalf("services write workflow tables directly: %+v", rep.Violations)
	}
	if rep.AggregateCalls == 0 {
		t.Fatalf("expected services to call aggregates")
	}
}
