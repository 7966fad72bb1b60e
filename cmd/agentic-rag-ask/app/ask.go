// Package app provides the agentic-rag-ask command line application.
package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kart-io/logger"

	"github.com/kart-io/agentic-rag/internal/rag/biz"
	"github.com/kart-io/agentic-rag/pkg/infra/app"
	"github.com/kart-io/agentic-rag/pkg/infra/pool"
)

const commandDesc = `Ask Journey to the West questions from the command line.

Each question runs one bounded agent session against the configured vector
store and language model. The reasoning trace is printed as the session
progresses. Several questions (arguments or --file) run concurrently and
each trace is printed when its session ends.

Examples:
  agentic-rag-ask "孙悟空的师父是谁？"
  agentic-rag-ask -f questions.txt --concurrency 8 -o json`

// NewApp creates the ask command.
func NewApp() *app.App {
	opts := NewAskOptions()
	return app.NewApp(
		app.WithName("agentic-rag-ask"),
		app.WithShortDescription("Ask questions through the agentic RAG loop"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

func run(opts *AskOptions) app.RunFunc {
	return func(args []string) error {
		questions, err := collectQuestions(args, opts.File)
		if err != nil {
			return err
		}

		cfg := opts.Config()
		if err := cfg.InitLogger(); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer logger.Flush()

		ctx := setupSignalContext()
		comps, err := cfg.BuildComponents(ctx)
		if err != nil {
			return fmt.Errorf("failed to build components: %w", err)
		}
		defer comps.Close(context.Background())

		return askAll(ctx, comps.Service, questions, opts.Concurrency, opts.Output, os.Stdout)
	}
}

// collectQuestions 合并命令行参数与问题文件中的问题。
func collectQuestions(args []string, file string) ([]string, error) {
	questions := make([]string, 0, len(args))
	for _, a := range args {
		if q := strings.TrimSpace(a); q != "" {
			questions = append(questions, q)
		}
	}

	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open question file: %w", err)
		}
		defer f.Close()

		fromFile, err := readQuestions(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read question file %s: %w", file, err)
		}
		questions = append(questions, fromFile...)
	}

	if len(questions) == 0 {
		return nil, fmt.Errorf("no question given: pass it as an argument or use --file")
	}
	return questions, nil
}

// readQuestions 按行读取问题，忽略空行和以 # 开头的注释行。
func readQuestions(r io.Reader) ([]string, error) {
	var questions []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, line)
	}
	return questions, sc.Err()
}

// askAll 运行全部问题并输出结果。任一会话失败时返回汇总错误。
func askAll(ctx context.Context, svc biz.Service, questions []string, concurrency int, output string, out io.Writer) error {
	p := newPrinter(out)
	results := make([]askOutput, len(questions))

	if len(questions) == 1 {
		var opts []biz.RunOption
		if output == OutputText {
			opts = append(opts, biz.WithObserver(biz.ObserverFuncs{
				Turn: func(_ string, t biz.Turn) { p.turn(t) },
			}))
		}
		res, err := svc.Ask(ctx, questions[0], opts...)
		results[0] = newAskOutput(questions[0], res, err)
		if output == OutputText {
			p.summary(res, err)
		}
	} else {
		wp, err := pool.NewPool("ask", &pool.Config{Capacity: concurrency})
		if err != nil {
			return err
		}
		defer wp.Release()

		err = wp.ForEach(ctx, len(questions), func(ctx context.Context, i int) {
			res, err := svc.Ask(ctx, questions[i])
			results[i] = newAskOutput(questions[i], res, err)
			if output == OutputText {
				p.trace(questions[i], res, err)
			}
		})
		if err != nil {
			return err
		}
	}

	if output == OutputJSON {
		if err := p.json(results); err != nil {
			return err
		}
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sessions failed", failed, len(questions))
	}
	return nil
}

func newAskOutput(question string, res *biz.Result, err error) askOutput {
	o := askOutput{Question: question, Result: res}
	if err != nil {
		o.Error = err.Error()
	}
	return o
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
