package memory

import (
	"iter"

	"novel-writer/internal/domain/entity"
)

// Collect 读完整个序列
func Collect(seq iter.Seq2[*entity.MemoryFact, error]) ([]*entity.MemoryFact, error) {
	var out []*entity.MemoryFact
	for fact, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, fact)
	}
	return out, nil
}

// Latest 同一 SupersedeKey 只保留最后出现的一条，事件类不合并。
// 结果保持原序列中的相对顺序，输入应按时间升序，例如 Store.Query 的结果
func Latest(seq iter.Seq2[*entity.MemoryFact, error]) ([]*entity.MemoryFact, error) {
	facts, err := Collect(seq)
	if err != nil {
		return nil, err
	}

	last := make(map[string]int, len(facts))
	for i, f := range facts {
		if f.Kind.Supersedes() {
			last[f.SupersedeKey()] = i
		}
	}
	out := make([]*entity.MemoryFact, 0, len(facts))
	for i, f := range facts {
		if !f.Kind.Supersedes() || last[f.SupersedeKey()] == i {
			out = append(out, f)
		}
	}
	return out, nil
}
