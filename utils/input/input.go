// 决策表输入：从JSON文件或MongoDB集合加载离线训练产生的决策表
package input

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tsinghua-fib-lab/intersection-sim/entity/signal/policy"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoTimeout 连接与读取MongoDB的超时时间
const mongoTimeout = 30 * time.Second

// TableDoc MongoDB中的一条决策表记录
// 说明：状态可以用key（持久化字符串格式）或state（7个整数）表示，二选一
type TableDoc struct {
	Key    string    `bson:"key,omitempty"`
	State  []int     `bson:"state,omitempty"`
	Values []float64 `bson:"values"`
}

// LoadTable 加载决策表
// 功能：根据配置从文件或MongoDB读取决策表
// 参数：ctx-上下文，cfg-决策表来源配置
// 返回：只读决策表；未配置来源或格式错误时返回错误（对启动是致命的）
// 说明：文件优先于MongoDB
func LoadTable(ctx context.Context, cfg config.Table) (*policy.Table, error) {
	if cfg.File != "" {
		return LoadTableFile(cfg.File)
	}
	if cfg.Empty() {
		return nil, fmt.Errorf("%w: table.file or table.uri/db/col must be specified", config.ErrInvalidConfig)
	}
	return loadTableMongo(ctx, cfg)
}

// LoadTableFile 从JSON文件读取决策表
func LoadTableFile(path string) (*policy.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := policy.ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Infof("decision table loaded from %s: %d states", path, t.Len())
	return t, nil
}

// loadTableMongo 从MongoDB集合读取决策表
func loadTableMongo(ctx context.Context, cfg config.Table) (*policy.Table, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	defer client.Disconnect(context.Background())

	coll := client.Database(cfg.DB).Collection(cfg.Col)
	cursor, err := coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	var docs []TableDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	t, err := BuildTable(docs)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", cfg.DB, cfg.Col, err)
	}
	log.Infof("decision table loaded from %s.%s: %d states", cfg.DB, cfg.Col, t.Len())
	return t, nil
}

// BuildTable 由数据库记录构建决策表
// 返回：记录的状态无法解析、值不是两个、状态重复时返回policy.ErrMalformedTable
func BuildTable(docs []TableDoc) (*policy.Table, error) {
	entries := make(map[policy.StateKey]policy.Values, len(docs))
	for i, doc := range docs {
		key, err := docKey(doc)
		if err != nil {
			return nil, fmt.Errorf("doc #%d: %w", i, err)
		}
		if len(doc.Values) != 2 {
			return nil, fmt.Errorf("%w: doc #%d has %d values, want 2", policy.ErrMalformedTable, i, len(doc.Values))
		}
		if _, dup := entries[key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %v", policy.ErrMalformedTable, key)
		}
		entries[key] = policy.Values{doc.Values[0], doc.Values[1]}
	}
	return policy.NewTable(entries), nil
}

func docKey(doc TableDoc) (policy.StateKey, error) {
	switch {
	case doc.Key != "" && len(doc.State) > 0:
		return policy.StateKey{}, fmt.Errorf("%w: both key and state given", policy.ErrMalformedTable)
	case doc.Key != "":
		return policy.ParseStateKey(doc.Key)
	}
	var k policy.StateKey
	if len(doc.State) != len(k) {
		return k, fmt.Errorf("%w: state has %d elements, want %d", policy.ErrMalformedTable, len(doc.State), len(k))
	}
	// 统一经过字符串格式校验取值范围
	for i, v := range doc.State {
		k[i] = int8(max(-128, min(127, v)))
		if int(k[i]) != v {
			return k, fmt.Errorf("%w: state element %d out of range", policy.ErrMalformedTable, i)
		}
	}
	return policy.ParseStateKey(k.String())
}
