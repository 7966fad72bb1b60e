package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPool(t *testing.T) {
	p, err := NewPool("test", DefaultPoolConfig())
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	if p.Name() != "test" {
		t.Errorf("池名称不匹配: 期望 test, 实际 %s", p.Name())
	}
	if p.Cap() != 4 {
		t.Errorf("池容量不匹配: 期望 4, 实际 %d", p.Cap())
	}

	if _, err := NewPool("bad", &Config{Capacity: 0}); err == nil {
		t.Error("容量为 0 时应返回错误")
	}
}

func TestPoolSubmit(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 10, ExpiryDuration: 5 * time.Second})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	var counter atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		if err := p.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		}); err != nil {
			t.Errorf("提交任务失败: %v", err)
			wg.Done()
		}
	}
	wg.Wait()

	if counter.Load() != 100 {
		t.Errorf("任务执行数不匹配: 期望 100, 实际 %d", counter.Load())
	}
	if s := p.Stats(); s.SubmittedTasks != 100 {
		t.Errorf("提交数不匹配: 期望 100, 实际 %d", s.SubmittedTasks)
	}
}

func TestPoolForEach(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 3})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	var running, peak atomic.Int32
	results := make([]int, 20)
	err = p.ForEach(context.Background(), len(results), func(_ context.Context, i int) {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		results[i] = i * i
		running.Add(-1)
	})
	if err != nil {
		t.Fatalf("ForEach 失败: %v", err)
	}

	for i, v := range results {
		if v != i*i {
			t.Errorf("结果[%d] = %d, 期望 %d", i, v, i*i)
		}
	}
	if peak.Load() > 3 {
		t.Errorf("并发数超过容量: %d", peak.Load())
	}
}

func TestPoolForEachCanceled(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 2})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var executed atomic.Int32
	err = p.ForEach(ctx, 5, func(context.Context, int) { executed.Add(1) })
	if err != context.Canceled {
		t.Errorf("期望 context.Canceled, 实际: %v", err)
	}
	if executed.Load() != 0 {
		t.Errorf("已取消的上下文不应执行任务, 实际执行 %d 个", executed.Load())
	}
}

func TestPoolPanicRecovery(t *testing.T) {
	var panicCaught atomic.Bool
	p, err := NewPool("test", &Config{
		Capacity: 5,
		PanicHandler: func(interface{}) {
			panicCaught.Store(true)
		},
	})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	defer p.Release()

	if err := p.Submit(func() { panic("测试 panic") }); err != nil {
		t.Errorf("提交任务失败: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for !panicCaught.Load() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !panicCaught.Load() {
		t.Error("panic 未被捕获")
	}
	if p.Stats().PanicRecovered != 1 {
		t.Errorf("panic 计数不匹配: %d", p.Stats().PanicRecovered)
	}
}

func TestPoolClosed(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 5})
	if err != nil {
		t.Fatalf("创建池失败: %v", err)
	}
	p.Release()
	p.Release()

	err = p.Submit(func() {
		t.Error("已关闭的池不应执行任务")
	})
	if err != ErrPoolClosed {
		t.Errorf("期望 ErrPoolClosed, 实际: %v", err)
	}
}
