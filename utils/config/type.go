package config

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
// 功能：定义仿真时间控制参数
// 说明：控制仿真的时间范围、步长和精度
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数（0表示一直运行直到被关闭）
	Interval float64 `yaml:"interval"` // 每步的时间间隔（秒）
}

// Control 模拟器控制配置
// 功能：定义仿真系统的核心控制参数
type Control struct {
	Step ControlStep `yaml:"step"`
	Seed uint64      `yaml:"seed"` // 随机数种子，到达流与VIP生成均由其派生
}

// Signal 信号控制配置
// 功能：定义相位状态机的时长参数与运行模式
// 说明：所有时长单位均为秒
type Signal struct {
	Mode            string  `yaml:"mode"`                       // two_phase（默认）或four_way
	InitialAxis     string  `yaml:"initial_axis,omitempty"`     // 两相位初始绿灯轴（ns/ew）
	InitialApproach string  `yaml:"initial_approach,omitempty"` // 四相位初始绿灯进口道
	MinGreen        float64 `yaml:"min_green"`                  // 最短绿灯
	MaxGreen        float64 `yaml:"max_green"`                  // 最长绿灯
	Amber           float64 `yaml:"amber"`                      // 黄灯
	AllRed          float64 `yaml:"all_red"`                    // 全红清空
	SwitchMargin    int     `yaml:"switch_margin"`              // 四相位：其他进口排队超过当前进口的阈值
}

// Vehicle 车辆运动学配置
// 功能：定义一维跟驰模型的几何与速度参数
// 说明：位置单位为像素（距生成点的距离），速度单位为像素/秒
type Vehicle struct {
	StopLine         float64 `yaml:"stop_line"`         // 停车线位置
	IntersectionEnd  float64 `yaml:"intersection_end"`  // 路口出口位置，越过即视为已进入路口
	Exit             float64 `yaml:"exit"`              // 驶离位置，越过后车辆被移除
	MaxSpeed         float64 `yaml:"max_speed"`         // 自由流速度
	MinGap           float64 `yaml:"min_gap"`           // 最小车间距
	SlowdownDistance float64 `yaml:"slowdown_distance"` // 停车线前开始减速的距离
	SpeedTau         float64 `yaml:"speed_tau"`         // 速度一阶平滑时间常数（秒）
	MaxQueue         int     `yaml:"max_queue"`         // 单个进口道容量，0表示不限
}

// Arrival 车辆到达配置
// 功能：各进口道的泊松到达率（辆/秒）与VIP生成概率
type Arrival struct {
	North          float64 `yaml:"north"`
	South          float64 `yaml:"south"`
	East           float64 `yaml:"east"`
	West           float64 `yaml:"west"`
	VIPProbability float64 `yaml:"vip_probability"` // 新生成车辆为优先车辆的概率
	Multiplier     float64 `yaml:"multiplier"`      // 到达率整体倍率（负载等级）
}

// Rates 按N/S/E/W顺序返回到达率
func (a Arrival) Rates() [4]float64 {
	return [4]float64{a.North, a.South, a.East, a.West}
}

// FixedTime 固定配时策略参数
type FixedTime struct {
	SwitchEvery float64 `yaml:"switch_every_s"`
}

// Actuated 阈值感应策略参数
type Actuated struct {
	ImbalanceSwitch       int     `yaml:"imbalance_switch"`
	CurrentEmptyThreshold int     `yaml:"current_empty_threshold"`
	OpposingMinToSwitch   int     `yaml:"opposing_min_to_switch"`
	MaxGreen              float64 `yaml:"max_green_s"`
}

// MaxPressure 最大压力策略参数
type MaxPressure struct {
	HysteresisMargin int     `yaml:"hysteresis_margin"`
	MaxGreen         float64 `yaml:"max_green_s"`
}

// Fuzzy 模糊逻辑策略参数
type Fuzzy struct {
	Low          float64 `yaml:"low"`
	Med          float64 `yaml:"med"`
	High         float64 `yaml:"high"`
	SwitchMargin float64 `yaml:"switch_margin"`
	MaxGreen     float64 `yaml:"max_green_s"`
}

// Policy 决策策略配置
// 功能：选择挂载到信控上的决策策略及其参数
// 说明：Name为空表示不挂载策略，信控使用内置的回退启发式
type Policy struct {
	Name        string      `yaml:"name"` // fixed_time|actuated|max_pressure|fuzzy|q_learning
	FixedTime   FixedTime   `yaml:"fixed_time"`
	Actuated    Actuated    `yaml:"actuated"`
	MaxPressure MaxPressure `yaml:"max_pressure"`
	Fuzzy       Fuzzy       `yaml:"fuzzy"`
}

// Table 决策表输入配置（MongoDB、文件系统）
// 功能：指定q_learning策略使用的决策表来源
// 说明：File优先于MongoDB
type Table struct {
	File string `yaml:"file,omitempty"` // JSON文件路径
	URI  string `yaml:"uri,omitempty"`  // MongoDB连接字符串
	DB   string `yaml:"db,omitempty"`   // 数据库名
	Col  string `yaml:"col,omitempty"`  // 集合名
}

// Empty 是否未配置任何来源
func (t Table) Empty() bool {
	return t.File == "" && (t.URI == "" || t.DB == "" || t.Col == "")
}

// Output 输出配置
type Output struct {
	SQLite string `yaml:"sqlite,omitempty"` // 逐步指标写入的SQLite文件，为空则不输出
}

// Load 批量实验的负载等级
type Load struct {
	Name       string  `yaml:"name"`
	Multiplier float64 `yaml:"multiplier"` // 到达率倍率
	Duration   float64 `yaml:"duration"`   // 仿真时长（秒）
}

// Batch 批量实验配置
// 功能：负载等级×策略的组合实验
type Batch struct {
	Loads    []Load   `yaml:"loads"`
	Policies []string `yaml:"policies"`
	Workers  int      `yaml:"workers"` // 并行仿真数，0表示不限
}

// Config YAML配置文件的根结构
// 功能：定义整个仿真系统的配置结构
type Config struct {
	Control Control `yaml:"control"` // 模拟过程控制
	Signal  Signal  `yaml:"signal"`  // 信号控制
	Vehicle Vehicle `yaml:"vehicle"` // 车辆运动学
	Arrival Arrival `yaml:"arrival"` // 车辆到达
	Policy  Policy  `yaml:"policy"`  // 决策策略
	Table   Table   `yaml:"table"`   // 决策表来源
	Output  Output  `yaml:"output"`  // 输出
	Batch   Batch   `yaml:"batch"`   // 批量实验
}
