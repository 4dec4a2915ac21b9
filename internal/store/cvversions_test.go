package store

import (
	"context"
	"errors"
	"testing"

	"jobvault/internal/kv"
)

func newTestVersion(id string, number int) CVVersion {
	return CVVersion{
		ID:            id,
		Title:         "简历 v" + id,
		Type:          DocumentResume,
		VersionNumber: number,
		Content:       "content of " + id,
		Hash:          HashContent("content of " + id),
	}
}

func TestVersionNumberAllocation(t *testing.T) {
	set := newTestSet(t, kv.PartitionZH)
	ctx := context.Background()

	if got := set.Versions.GetNextVersionNumber(ctx); got != 1 {
		t.Fatalf("empty collection next = %d, want 1", got)
	}

	if err := set.Versions.Save(ctx, newTestVersion("v1", 1)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := set.Versions.Save(ctx, newTestVersion("v5", 5)); err != nil {
		t.Fatalf("save: %v", err)
	}

	if got := set.Versions.GetNextVersionNumber(ctx); got != 6 {
		t.Errorf("next = %d, want 6", got)
	}

	// 删除中间版本不回填号码
	if err := set.Versions.Delete(ctx, "v5"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := set.Versions.GetNextVersionNumber(ctx); got != 2 {
		t.Errorf("next after delete = %d, want 2", got)
	}
}

func TestLinkToApplicationIsIdempotent(t *testing.T) {
	set := newTestSet(t, kv.PartitionZH)
	ctx := context.Background()

	if err := set.Versions.Save(ctx, newTestVersion("v1", 1)); err != nil {
		t.Fatalf("save: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := set.Versions.LinkToApplication(ctx, "v1", "app-1"); err != nil {
			t.Fatalf("link #%d: %v", i, err)
		}
	}

	version := set.Versions.GetByID(ctx, "v1")
	if len(version.LinkedApplications) != 1 {
		t.Errorf("linkedApplications = %v", version.LinkedApplications)
	}

	if err := set.Versions.LinkToApplication(ctx, "no-such-version", "app-1"); err == nil {
		t.Error("linking missing version should fail")
	}
}

func TestUnlinkFromApplication(t *testing.T) {
	set := newTestSet(t, kv.PartitionZH)
	ctx := context.Background()

	if err := set.Versions.Save(ctx, newTestVersion("v1", 1)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := set.Versions.LinkToApplication(ctx, "v1", "app-1"); err != nil {
		t.Fatalf("link: %v", err)
	}

	if err := set.Versions.UnlinkFromApplication(ctx, "v1", "app-1"); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if got := set.Versions.GetByID(ctx, "v1"); len(got.LinkedApplications) != 0 {
		t.Errorf("linkedApplications = %v", got.LinkedApplications)
	}

	// 版本不存在时静默成功
	if err := set.Versions.UnlinkFromApplication(ctx, "gone", "app-1"); err != nil {
		t.Errorf("unlink missing version: %v", err)
	}
}

func TestGetVersionsForApplication(t *testing.T) {
	set := newTestSet(t, kv.PartitionZH)
	ctx := context.Background()

	for _, id := range []string{"v1", "v2", "v3"} {
		if err := set.Versions.Save(ctx, newTestVersion(id, 1)); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	if err := set.Versions.LinkToApplication(ctx, "v1", "app-1"); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := set.Versions.LinkToApplication(ctx, "v3", "app-1"); err != nil {
		t.Fatalf("link: %v", err)
	}

	matched := set.Versions.GetVersionsForApplication(ctx, "app-1")
	if len(matched) != 2 {
		t.Fatalf("matched %d versions, want 2", len(matched))
	}
}

func TestUpdateCVRefreshesTimestamp(t *testing.T) {
	set := newTestSet(t, kv.PartitionZH)
	ctx := context.Background()

	if err := set.Versions.Save(ctx, newTestVersion("v1", 1)); err != nil {
		t.Fatalf("save: %v", err)
	}

	err := set.Versions.UpdateCV(ctx, "v1", func(v *CVVersion) {
		v.Note = "tuned for backend roles"
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got := set.Versions.GetByID(ctx, "v1")
	if got.Note != "tuned for backend roles" {
		t.Errorf("note = %q", got.Note)
	}
	if got.Updated == "" {
		t.Error("updated timestamp not set")
	}
}

func TestUpdateCVMissingVersion(t *testing.T) {
	set := newTestSet(t, kv.PartitionZH)
	ctx := context.Background()

	called := false
	err := set.Versions.UpdateCV(ctx, "no-such-version", func(v *CVVersion) {
		called = true
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if called {
		t.Error("update callback ran for a missing version")
	}
}
