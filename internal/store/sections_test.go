package store

import (
	"context"
	"strings"
	"testing"

	"jobvault/internal/kv"
)

func TestInitializeDefaultTemplatesIsIdempotent(t *testing.T) {
	set := newTestSet(t, kv.PartitionZH)
	ctx := context.Background()

	if err := set.Sections.InitializeDefaultTemplates(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	first := set.Sections.GetTemplates(ctx)
	if len(first) != 3 {
		t.Fatalf("seeded %d templates, want 3", len(first))
	}

	if err := set.Sections.InitializeDefaultTemplates(ctx); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if got := set.Sections.GetTemplates(ctx); len(got) != 3 {
		t.Errorf("second seed changed template count to %d", len(got))
	}
}

func TestCreateSectionFromTemplate(t *testing.T) {
	set := newTestSet(t, kv.PartitionZH)
	ctx := context.Background()

	if err := set.Sections.InitializeDefaultTemplates(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	templates := set.Sections.GetTemplates(ctx)
	template := templates[0]

	clone, err := set.Sections.CreateSectionFromTemplate(ctx, template.ID, ResumeSection{})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if clone.IsTemplate {
		t.Error("clone should not be a template")
	}
	if clone.ParentID != template.ID {
		t.Errorf("parentId = %q, want %q", clone.ParentID, template.ID)
	}
	if clone.VersionNumber != 1 {
		t.Errorf("versionNumber = %d, want 1", clone.VersionNumber)
	}
	if !strings.HasSuffix(clone.Title, "(Copy)") {
		t.Errorf("default title = %q", clone.Title)
	}
	if clone.Content != template.Content {
		t.Error("clone content differs from template")
	}

	// 标题覆盖
	named, err := set.Sections.CreateSectionFromTemplate(ctx, template.ID, ResumeSection{Title: "我的教育经历"})
	if err != nil {
		t.Fatalf("clone with title: %v", err)
	}
	if named.Title != "我的教育经历" {
		t.Errorf("title = %q", named.Title)
	}

	if _, err := set.Sections.CreateSectionFromTemplate(ctx, "no-such-template", ResumeSection{}); err == nil {
		t.Error("cloning missing template should fail")
	}
}

func TestGetSectionsByType(t *testing.T) {
	set := newTestSet(t, kv.PartitionZH)
	ctx := context.Background()

	sections := []ResumeSection{
		{ID: "s1", Type: SectionSkills, Title: "技能", VersionNumber: 1},
		{ID: "s2", Type: SectionSkills, Title: "更多技能", VersionNumber: 2},
		{ID: "s3", Type: SectionCustom, Title: "其它", VersionNumber: 3},
	}
	for _, section := range sections {
		if err := set.Sections.Save(ctx, section); err != nil {
			t.Fatalf("save %s: %v", section.ID, err)
		}
	}

	if got := set.Sections.GetSectionsByType(ctx, SectionSkills); len(got) != 2 {
		t.Errorf("skills sections = %d, want 2", len(got))
	}
	if got := set.Sections.GetSectionsByType(ctx, SectionEducation); len(got) != 0 {
		t.Errorf("education sections = %d, want 0", len(got))
	}
}
