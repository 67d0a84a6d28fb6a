package main

// 用法: dualstore [-config dualstore.yaml] seed|project|compare|export-graph|serve|all
// ubuntu 后台执行: nohup ./dualstore serve > dualstore.log 2>&1 &
import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studieren/dualstore/aggregate"
	"github.com/studieren/dualstore/config"
	"github.com/studieren/dualstore/events"
	"github.com/studieren/dualstore/gormtool"
	"github.com/studieren/dualstore/graph"
	"github.com/studieren/dualstore/projector"
	"github.com/studieren/dualstore/seeder"
	"github.com/studieren/dualstore/server"
	"github.com/studieren/dualstore/store"
	"github.com/studieren/dualstore/validator"
)

type app struct {
	cfg    *config.Config
	logger gormtool.Logger
	run    *events.Run
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file] <command>\n\n", os.Args[0])
	fmt.Fprintln(flag.CommandLine.Output(), "commands:")
	fmt.Fprintln(flag.CommandLine.Output(), "  seed          重建关系库并生成随机数据")
	fmt.Fprintln(flag.CommandLine.Output(), "  project       把关系库数据投影到 MongoDB")
	fmt.Fprintln(flag.CommandLine.Output(), "  compare       在配置的时间窗口内比较两种聚合结果")
	fmt.Fprintln(flag.CommandLine.Output(), "  export-graph  把关系库数据导出到 Neo4j")
	fmt.Fprintln(flag.CommandLine.Output(), "  serve         启动 HTTP 服务")
	fmt.Fprintln(flag.CommandLine.Output(), "  all           依次执行 seed、project、compare")
	fmt.Fprintln(flag.CommandLine.Output())
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "配置文件路径，默认读取当前目录的 dualstore.yaml")
	flag.Usage = usage
	flag.Parse()

	logger := gormtool.NewDefaultLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error(ctx, "配置加载失败", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	a := &app{cfg: cfg, logger: logger, run: events.NewRun(publisher, logger)}

	err = a.dispatch(ctx, flag.Arg(0))
	if cerr := publisher.Close(); cerr != nil {
		logger.Warn(ctx, "事件发布者关闭失败", map[string]interface{}{"error": cerr.Error()})
	}
	if err != nil {
		logger.Error(ctx, "命令失败", map[string]interface{}{
			"command": flag.Arg(0),
			"run_id":  a.run.ID,
			"error":   err.Error(),
		})
		os.Exit(1)
	}
}

func (a *app) dispatch(ctx context.Context, cmd string) error {
	switch cmd {
	case "seed":
		return a.stage(ctx, "seed", a.seed)
	case "project":
		return a.stage(ctx, "project", a.project)
	case "compare":
		return a.stage(ctx, "compare", a.compare)
	case "export-graph":
		return a.stage(ctx, "export_graph", a.exportGraph)
	case "serve":
		return a.serve(ctx)
	case "all":
		for _, step := range []string{"seed", "project", "compare"} {
			if err := a.dispatch(ctx, step); err != nil {
				return err
			}
		}
		return nil
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

type stageFunc func(ctx context.Context) (map[string]int, error)

// stage 发布开始和结束事件
func (a *app) stage(ctx context.Context, name string, fn stageFunc) error {
	a.run.Started(ctx, name)
	counts, err := fn(ctx)
	a.run.Finished(ctx, name, counts, err)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func release(ctx context.Context, logger gormtool.Logger, name string, fn store.Release) {
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		logger.Warn(ctx, "连接关闭失败", map[string]interface{}{"handle": name, "error": err.Error()})
	}
}

func (a *app) openTool() (*gormtool.Tool, store.Release, error) {
	db, closeDB, err := store.OpenRelational(a.cfg.Relational)
	if err != nil {
		return nil, nil, err
	}
	return gormtool.NewTool(db, nil, a.logger), closeDB, nil
}

func (a *app) window() (aggregate.Window, error) {
	start, end, err := a.cfg.WindowBounds()
	if err != nil {
		return aggregate.Window{}, err
	}
	return aggregate.NewWindow(start, end)
}

func (a *app) seed(ctx context.Context) (map[string]int, error) {
	tool, closeDB, err := a.openTool()
	if err != nil {
		return nil, err
	}
	defer release(ctx, a.logger, "relational", closeDB)

	s := seeder.New(tool, a.cfg.Seed.RandomSeed)
	report, err := s.BuildAndSeed(ctx, a.cfg.Seed.Users, a.cfg.Seed.MaxPostsPerUser)
	return report.Counts(), err
}

func (a *app) project(ctx context.Context) (map[string]int, error) {
	tool, closeDB, err := a.openTool()
	if err != nil {
		return nil, err
	}
	defer release(ctx, a.logger, "relational", closeDB)

	mdb, closeMongo, err := store.OpenMongo(ctx, a.cfg.Mongo)
	if err != nil {
		return nil, err
	}
	defer release(ctx, a.logger, "mongo", closeMongo)

	rdb, closeRedis, err := store.OpenRedis(ctx, a.cfg.Redis)
	if err != nil {
		return nil, err
	}
	defer release(ctx, a.logger, "redis", closeRedis)
	tool.RedisClient = rdb

	p := projector.New(tool, projector.NewMongoSink(mdb),
		projector.WithPageSizes(a.cfg.Projector.UserPageSize, a.cfg.Projector.PostPageSize))
	report, err := p.Run(ctx)
	counts := report.Counts()
	if err != nil {
		return counts, err
	}

	// 投影已重建，旧的比较结果作废
	deleted, err := tool.InvalidateCache(ctx, server.CompareCacheNamespace)
	if err != nil {
		return counts, fmt.Errorf("invalidate compare cache: %w", err)
	}
	counts["cache_invalidated"] = deleted
	return counts, nil
}

func (a *app) compare(ctx context.Context) (map[string]int, error) {
	w, err := a.window()
	if err != nil {
		return nil, err
	}

	tool, closeDB, err := a.openTool()
	if err != nil {
		return nil, err
	}
	defer release(ctx, a.logger, "relational", closeDB)

	mdb, closeMongo, err := store.OpenMongo(ctx, a.cfg.Mongo)
	if err != nil {
		return nil, err
	}
	defer release(ctx, a.logger, "mongo", closeMongo)

	report, err := validator.Run(ctx,
		aggregate.NewRelational(tool),
		aggregate.NewDocument(mdb, a.logger),
		w, validator.Options{ComparePosts: a.cfg.Compare.Posts})
	if err != nil {
		return nil, err
	}

	counts := map[string]int{"tags": report.Tags}
	fields := map[string]interface{}{
		"start":         w.Start.Format(time.RFC3339),
		"end":           w.End.Format(time.RFC3339),
		"tags":          report.Tags,
		"relational_ms": report.RelationalMS,
		"document_ms":   report.DocumentMS,
	}
	if report.Mismatch != nil {
		fields["mismatch"] = report.Mismatch.Error()
		a.logger.Error(ctx, "聚合结果不一致", fields)
		return counts, report.Mismatch
	}
	a.logger.Info(ctx, "聚合结果一致", fields)
	return counts, nil
}

func (a *app) exportGraph(ctx context.Context) (map[string]int, error) {
	if a.cfg.Neo4j.URI == "" {
		return nil, errors.New("neo4j.uri is not configured")
	}

	tool, closeDB, err := a.openTool()
	if err != nil {
		return nil, err
	}
	defer release(ctx, a.logger, "relational", closeDB)

	runner, err := graph.NewNeo4jRunner(a.cfg.Neo4j)
	if err != nil {
		return nil, err
	}
	defer release(ctx, a.logger, "neo4j", runner.Close)
	if err := runner.Verify(ctx); err != nil {
		return nil, fmt.Errorf("verify neo4j: %w", err)
	}

	report, err := graph.NewExporter(tool, runner, graph.DefaultPageSize).Export(ctx)
	return report.Counts(), err
}

func (a *app) serve(ctx context.Context) error {
	w, err := a.window()
	if err != nil {
		return err
	}

	db, closeDB, err := store.OpenRelational(a.cfg.Relational)
	if err != nil {
		return err
	}
	defer release(ctx, a.logger, "relational", closeDB)

	rdb, closeRedis, err := store.OpenRedis(ctx, a.cfg.Redis)
	if err != nil {
		return err
	}
	defer release(ctx, a.logger, "redis", closeRedis)

	mdb, closeMongo, err := store.OpenMongo(ctx, a.cfg.Mongo)
	if err != nil {
		return err
	}
	defer release(ctx, a.logger, "mongo", closeMongo)

	tool := gormtool.NewTool(db, rdb, a.logger)
	srv := &http.Server{
		Addr: a.cfg.Server.Addr,
		Handler: server.New(tool,
			aggregate.NewRelational(tool),
			aggregate.NewDocument(mdb, a.logger),
			w, validator.Options{ComparePosts: a.cfg.Compare.Posts}).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info(ctx, "HTTP 服务启动", map[string]interface{}{"addr": srv.Addr, "mode": gin.Mode()})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
