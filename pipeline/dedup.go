package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/BaSui01/structstream/internal/pool"
	"github.com/BaSui01/structstream/types"
)

// digests 复用 xxhash 状态，每个片段都会计算一次哈希。
var digests = pool.New(xxhash.New, func(d *xxhash.Digest) { d.Reset() })

// candidate 是一次反序列化得到的部分值。
type candidate[T any] struct {
	json  string
	value T
	hash  uint64
}

// deserializeAndDeduplicate 把修复后的 JSON 转为类型化值并计算内容哈希。
//
// 返回 ok=false 且 err=nil 表示“无变化”：修复结果为空，或哈希与上一次
// 发出的值相同。err 非空时为非致命诊断，调用方继续处理下一个片段。
func deserializeAndDeduplicate[T any](model Model[T], repaired string, lastHash uint64, hasHash bool) (candidate[T], bool, error) {
	if repaired == "" {
		return candidate[T]{}, false, nil
	}
	value, err := model.Deserialize([]byte(repaired))
	if err != nil {
		return candidate[T]{}, false, err
	}
	value, err = model.Transform(value)
	if err != nil {
		return candidate[T]{}, false, err
	}
	hash, err := contentHash(value)
	if err != nil {
		return candidate[T]{}, false, err
	}
	if hasHash && hash == lastHash {
		return candidate[T]{}, false, nil
	}
	return candidate[T]{json: repaired, value: value, hash: hash}, true, nil
}

// contentHash 对值的规范 JSON 编码（map 键有序）做 xxhash64。
// 编码直接写入 digest，不保留中间字节。
func contentHash(v any) (uint64, error) {
	var sum uint64
	err := digests.With(func(d *xxhash.Digest) error {
		if err := json.NewEncoder(d).Encode(v); err != nil {
			return err
		}
		sum = d.Sum64()
		return nil
	})
	if err != nil {
		return 0, types.NewError(types.ErrInternalError, "hash partial value").WithCause(fmt.Errorf("marshal: %w", err))
	}
	return sum, nil
}
