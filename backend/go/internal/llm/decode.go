package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/kaptinlin/jsonrepair"
)

var (
	jsonAPI  = jsoniter.ConfigCompatibleWithStandardLibrary
	validate = validator.New()
)

// ParseError 表示模型回复无法被提取、解码或通过结构校验。Raw 保存模型的原始回复。
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	raw := e.Raw
	if len(raw) > 300 {
		raw = raw[:300] + "..."
	}
	return fmt.Sprintf("parse model response: %v\nraw: %s", e.Err, raw)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CompleteAs 调用 Complete，从回复中提取 JSON，解码为 T 并按 validate 标签校验。
// 严格解码失败时会尝试修复一次 JSON；仍然失败则返回携带原文的 *ParseError。
func CompleteAs[T any](ctx context.Context, gw *Gateway, system, user string) (T, error) {
	var out T
	raw, err := gw.Complete(ctx, system, user)
	if err != nil {
		return out, err
	}

	repaired, err := Decode(raw, &out)
	if err != nil {
		return out, err
	}
	if repaired {
		gw.log.WithField("response_chars", len(raw)).Warn("model response needed JSON repair")
	}
	return out, nil
}

// Decode 从模型回复 raw 中提取 JSON 并解码到 v，返回是否使用了 JSON 修复。
func Decode(raw string, v interface{}) (repaired bool, err error) {
	payload := ExtractJSON(raw)

	if strictErr := jsonAPI.UnmarshalFromString(payload, v); strictErr != nil {
		fixed, repairErr := jsonrepair.JSONRepair(payload)
		if repairErr != nil {
			return false, &ParseError{Raw: raw, Err: strictErr}
		}
		if err := jsonAPI.UnmarshalFromString(fixed, v); err != nil {
			return false, &ParseError{Raw: raw, Err: strictErr}
		}
		repaired = true
	}

	if err := validate.Struct(v); err != nil {
		var invalid *validator.InvalidValidationError
		if !errors.As(err, &invalid) {
			return repaired, &ParseError{Raw: raw, Err: fmt.Errorf("unexpected shape: %w", err)}
		}
	}
	return repaired, nil
}
