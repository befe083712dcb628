// 随机数引擎，包装了golang.org/x/exp/rand，提供了一些常用的随机数生成方法
package randengine

import (
	"flag"
	"log"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎（非线程安全）
// 功能：提供可复现的随机数生成功能，每个仿真实例独占一个
// 说明：基于golang.org/x/exp/rand库，泊松分布由gonum的distuv在同一随机源上采样
type Engine struct {
	*rand.Rand             // 底层随机数生成器
	src        rand.Source // 随机源，与Rand共享状态
}

// New 创建随机数引擎
// 功能：初始化一个新的随机数引擎实例
// 参数：seed-随机数种子
// 返回：随机数引擎指针
// 说明：种子偏移量允许在不修改配置的情况下调整随机数序列
func New(seed uint64) *Engine {
	src := rand.NewSource(seed + *seedOffset)
	return &Engine{Rand: rand.New(src), src: src}
}

// Reseed 以新种子重置随机序列
func (e *Engine) Reseed(seed uint64) {
	e.Rand.Seed(seed + *seedOffset)
}

// DiscreteDistribution 按给定概率分布生成随机数
// 功能：根据权重数组生成离散分布的随机数
// 参数：weight-权重数组，每个元素表示对应索引的概率权重
// 返回：随机生成的索引值（0到len(weight)-1）
// 算法说明：
// 1. 计算总权重并在[0, 总权重)范围内生成随机数
// 2. 累积权重直到超过随机数，返回该索引
// 说明：使用累积分布函数的方法实现离散概率分布
func (e *Engine) DiscreteDistribution(weight []float64) int32 {
	random := .0
	for _, w := range weight {
		random += w
	}
	random *= e.Float64()
	sum := 0.
	for i, w := range weight {
		sum += w
		if sum > random {
			return int32(i)
		}
	}
	log.Panicf("randengine: DiscreteDistribution: sum: %f random: %f", sum, random)
	return -1
}

// PTrue 以指定概率返回true
// 参数：p-返回true的概率（0.0到1.0之间）
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}

// Poisson 泊松分布采样
// 功能：返回期望为lambda的泊松随机数，用于一个步长内的车辆到达数
// 参数：lambda-期望值（到达率×步长）
// 返回：非负整数样本，lambda非正时恒为0
func (e *Engine) Poisson(lambda float64) int {
	if !(lambda > 0) {
		return 0
	}
	return int(distuv.Poisson{Lambda: lambda, Src: e.src}.Rand())
}
