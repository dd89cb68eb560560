package llm

import (
	"Friday/backend/go/internal/config"
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Completer 是文本补全服务的统一接口：输入提示词，返回补全文本。
// 不支持流式和结构化输出，JSON 由调用方从文本中提取。
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Func 让普通函数实现 Completer，主要用于测试。
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// NewClient 是一个工厂函数，根据配置创建对应提供商的 Completer，并包上超时和熔断。
func NewClient(ctx context.Context, cfg config.LLMConfig) (Completer, error) {
	var (
		base Completer
		err  error
	)
	switch cfg.Provider {
	case "gemini":
		base, err = NewGemini(ctx, cfg.Gemini)
	case "ollama":
		base, err = NewOllama(cfg.Ollama.Model, cfg.Ollama.BaseURL)
	case "openai":
		base, err = NewOpenAI(cfg.OpenAI)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewGuarded(base, cfg), nil
}

// JSONIsland 截取文本中第一个 '{' 到最后一个 '}' 之间的内容，并校验其为合法 JSON。
// 模型经常在 JSON 前后附带说明文字或代码块标记。
func JSONIsland(text string) (gjson.Result, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return gjson.Result{}, false
	}
	island := text[start : end+1]
	if !gjson.Valid(island) {
		return gjson.Result{}, false
	}
	return gjson.Parse(island), true
}
