// Package extract 用无头浏览器把职位页面还原成纯文本，供 AI 解析协作方
// 消费。核心只把结果当不透明文本，不做长度截断。
package extract

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"jobvault/internal/config"
)

// Extractor 负责抓取页面并抽取正文文本。
type Extractor struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewExtractor 构造 Extractor。
func NewExtractor(cfg config.ExtractConfig, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:  logger,
	}
}

// pageTextScript 在页面内剔除非正文节点后取 innerText，
// 列表项前置圆点以保留列表结构。
const pageTextScript = `() => {
  const junk = document.querySelectorAll('script, style, noscript, iframe, svg, nav, header > nav, footer');
  junk.forEach(el => el.remove());
  document.querySelectorAll('li').forEach(li => {
    li.textContent = '• ' + li.textContent.trim();
  });
  return document.body ? document.body.innerText : '';
}`

// PageText 抓取 targetURL 并返回归一化后的纯文本。
func (e *Extractor) PageText(targetURL string) (_ string, err error) {
	e.logger.Info("extracting page text", slog.String("url", targetURL))

	launch := launcher.New().
		Headless(true).
		NoSandbox(true)
	defer func() {
		if err != nil {
			launch.Cleanup()
		}
	}()

	if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}

	browserURL, err := launch.Launch()
	if err != nil {
		return "", fmt.Errorf("launch chromium: %w", err)
	}

	browser := rod.New().ControlURL(browserURL).Timeout(e.timeout)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		_ = browser.Close()
		launch.Cleanup()
	}()

	page, err := browser.Page(proto.TargetCreateTarget{URL: targetURL})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	defer func() {
		_ = page.Close()
	}()

	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait page load: %w", err)
	}

	result, err := page.Eval(pageTextScript)
	if err != nil {
		return "", fmt.Errorf("evaluate extraction script: %w", err)
	}

	return NormalizeText(result.Value.Str()), nil
}

var (
	spaceRun   = regexp.MustCompile(`[ \t]+`)
	newlineRun = regexp.MustCompile(`\n{3,}`)
)

// NormalizeText 压缩连续空白：行内空白合并为单个空格，三个以上连续
// 换行压成一个空行，并剔除每行首尾空白。
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = spaceRun.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	text = newlineRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
