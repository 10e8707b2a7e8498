package pipeline

import (
	"errors"
	"fmt"

	"github.com/BaSui01/structstream/jsonrepair"
	"github.com/BaSui01/structstream/types"
)

// FinalizeStage 标识终结失败发生的阶段。
type FinalizeStage string

const (
	StageExtract     FinalizeStage = "extract"
	StageDeserialize FinalizeStage = "deserialize"
	StageValidate    FinalizeStage = "validate"
	StageTransform   FinalizeStage = "transform"
)

// FinalizeError 是终结失败，Err 携带完整的反序列化或校验细节。
type FinalizeError struct {
	Stage FinalizeStage
	Err   error
}

func (e *FinalizeError) Error() string {
	return fmt.Sprintf("finalize %s: %v", e.Stage, e.Err)
}

func (e *FinalizeError) Unwrap() error { return e.Err }

// finalize 对完整响应文本执行 提取 → 反序列化 → 校验 → 转换。
// 这是唯一的正确性关口，部分值不会绕过它。
func finalize[T any](model Model[T], response string) (T, error) {
	var zero T

	doc := jsonrepair.Extract(response)
	if doc == "" {
		return zero, &FinalizeError{
			Stage: StageExtract,
			Err:   types.NewDeserializationError(errors.New("no JSON document in response")),
		}
	}

	raw := []byte(doc)
	value, err := model.Deserialize(raw)
	if err != nil {
		return zero, &FinalizeError{Stage: StageDeserialize, Err: err}
	}
	value, err = model.Validate(raw, value)
	if err != nil {
		return zero, &FinalizeError{Stage: StageValidate, Err: err}
	}
	value, err = model.Transform(value)
	if err != nil {
		return zero, &FinalizeError{Stage: StageTransform, Err: err}
	}
	return value, nil
}
