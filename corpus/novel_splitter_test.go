package corpus

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"
)

const sampleNovel = `隐杀
作者：轩辕

第一卷 少年
第一章 开始
家明走在路上。
第二章 相遇
灵静来了。
第二卷 风云
第三章 变化
雅涵说话了。
--外篇--
外篇 第一节 旧事
往事。
--后篇--
后篇 第一章 结局
结束。`

func TestSplitNovel_LayoutAndCounters(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "novel.txt")
	gbk, err := simplifiedchinese.GBK.NewEncoder().String(sampleNovel)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(in, []byte(gbk), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := filepath.Join(dir, "split")

	res, err := SplitNovel(context.Background(), in, out, NovelSplitOptions{})
	if err != nil {
		t.Fatalf("SplitNovel: %v", err)
	}

	intro, err := os.ReadFile(filepath.Join(out, "00_Introduction", "000_Intro.txt"))
	if err != nil {
		t.Fatalf("read intro: %v", err)
	}
	if !strings.HasPrefix(string(intro), "隐杀") || strings.Contains(string(intro), "第一卷") {
		t.Fatalf("intro=%q", intro)
	}

	want := []string{
		"01_第一卷/001_第一卷 少年.txt",
		"01_第一卷/002_第一章 开始.txt",
		"01_第一卷/003_第二章 相遇.txt",
		"02_第二卷/004_第二卷 风云.txt",
		"02_第二卷/005_第三章 变化.txt",
		"03_Outer_Chapters/006_--外篇--.txt",
		"03_Outer_Chapters/007_外篇 第一节 旧事.txt",
		"04_Post_Chapters/008_--后篇--.txt",
		"04_Post_Chapters/009_后篇 第一章 结局.txt",
	}
	for _, rel := range want {
		if _, err := os.Stat(filepath.Join(out, filepath.FromSlash(rel))); err != nil {
			t.Fatalf("missing %s: %v", rel, err)
		}
	}
	if res.ChaptersWritten != len(want) {
		t.Fatalf("ChaptersWritten=%d, want %d", res.ChaptersWritten, len(want))
	}

	body, _ := os.ReadFile(filepath.Join(out, "01_第一卷", "002_第一章 开始.txt"))
	if string(body) != "第一章 开始\n家明走在路上。" {
		t.Fatalf("chapter body=%q", body)
	}
}

func TestSplitNovel_RefusesExistingOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "novel.txt")
	if err := os.WriteFile(in, []byte("序\n第一章 开始\n正文"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := filepath.Join(dir, "split")
	if err := os.MkdirAll(filepath.Join(out, "stale"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if _, err := SplitNovel(context.Background(), in, out, NovelSplitOptions{}); err == nil {
		t.Fatalf("expected error for existing output")
	}
	if _, err := SplitNovel(context.Background(), in, out, NovelSplitOptions{Overwrite: true}); err != nil {
		t.Fatalf("SplitNovel overwrite: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "stale")); !os.IsNotExist(err) {
		t.Fatalf("stale dir survived overwrite")
	}
	if _, err := os.Stat(filepath.Join(out, "00_Introduction", "001_第一章 开始.txt")); err != nil {
		t.Fatalf("chapter without volume should stay in intro volume: %v", err)
	}
}
