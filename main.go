package main

import (
	"context"
	"encoding/base64"
	"flag"
	"os"
	"os/signal"
	"syscall"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/signal/policy"
	"github.com/tsinghua-fib-lab/intersection-sim/recorder"
	"github.com/tsinghua-fib-lab/intersection-sim/task"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/input"
	"gopkg.in/yaml.v2"
)

var (
	// 配置文件路径，为空时使用默认配置
	configPath = flag.String("config", "", "config file path (empty means built-in defaults)")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// 覆盖配置中的决策策略
	policyName = flag.String("policy", "", "override policy.name (fixed_time actuated max_pressure fuzzy q_learning)")
	// 覆盖配置中的随机种子，0表示不覆盖
	seed = flag.Uint64("seed", 0, "override control.seed (0 means keep config)")
	// 批量实验模式：按batch段运行负载等级×策略的全部组合
	batch = flag.Bool("batch", false, "run the batch experiment described by the batch section")
	// 指标数据库路径，覆盖output.sqlite，为空则不保存
	sqlitePath = flag.String("sqlite", "", "metrics sqlite path (overrides output.sqlite)")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "intersection")
)

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}
	// 获取配置：默认值之上覆盖文件中的字段
	c := config.Default()
	var file []byte
	var err error
	if *configPath != "" {
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	} else if *configData != "" {
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	}
	if file != nil {
		if err := yaml.UnmarshalStrict(file, &c); err != nil {
			log.Panicf("config file load err: %v", err)
		}
	}
	if *policyName != "" {
		c.Policy.Name = *policyName
	}
	if *seed != 0 {
		c.Control.Seed = *seed
	}
	if *sqlitePath != "" {
		c.Output.SQLite = *sqlitePath
	}
	if err := c.Validate(); err != nil {
		log.Panicf("config invalid: %v", err)
	}
	log.Infof("%+v", c)

	goCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 决策表：q_learning被使用且配置了来源时加载
	var table *policy.Table
	if usesTable(c) && !c.Table.Empty() {
		if table, err = input.LoadTable(goCtx, c.Table); err != nil {
			log.Panicf("decision table load err: %v", err)
		}
		log.Infof("decision table loaded: %d states", table.Len())
	}

	var db *recorder.DB
	if c.Output.SQLite != "" {
		if db, err = recorder.OpenDB(c.Output.SQLite); err != nil {
			log.Panicf("open sqlite %s err: %v", c.Output.SQLite, err)
		}
		defer db.Close()
	}

	if *batch {
		results, err := task.RunBatch(goCtx, c, table, db)
		if err != nil {
			log.Errorf("batch failed: %v", err)
			return
		}
		for _, r := range results {
			log.Infof("%-8s %-12s mean_queue=%6.2f std=%6.2f max=%4d vip=%5.2f throughput=%5d switches=%4d dropped=%d",
				r.Load, r.Policy, r.MeanQueue, r.StdQueue, r.MaxQueue, r.MeanPriority, r.Throughput, r.Switches, r.Dropped)
		}
		return
	}

	opts := []task.Option{task.WithTable(table)}
	if db != nil {
		opts = append(opts, task.WithSink(db.NewSink()))
	}
	t, err := task.NewContext(c, opts...)
	if err != nil {
		log.Panicf("create simulation err: %v", err)
	}
	if err := t.Run(goCtx); err != nil {
		log.Errorf("run %s stopped: %v", t.RunID(), err)
	}
	if db != nil {
		s := t.Summary()
		r := task.Result{Load: "config", Policy: c.Policy.Name, Seed: c.Control.Seed, Summary: s}
		if err := db.RecordRun(r.Run()); err != nil {
			log.Errorf("record run err: %v", err)
		}
	}
}

func usesTable(c config.Config) bool {
	if *batch {
		for _, p := range c.Batch.Policies {
			if p == config.PolicyQLearning {
				return true
			}
		}
		return false
	}
	return c.Policy.Name == config.PolicyQLearning
}
