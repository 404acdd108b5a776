package pipeline

import (
	"math"
	"testing"
)

func TestPlanWindowsUnderLimit(t *testing.T) {
	// 10MB 文件，20MB 限制：不切分，单窗口覆盖全程
	windows := planWindows(10*1024*1024, 20*1024*1024, 600)

	if len(windows) != 1 {
		t.Fatalf("期望 1 个窗口，得到 %d", len(windows))
	}
	if windows[0].start != 0 || windows[0].end != 600 {
		t.Errorf("单窗口应覆盖全程 [0, 600]，得到 [%v, %v]", windows[0].start, windows[0].end)
	}
}

func TestPlanWindowsThreeChunks(t *testing.T) {
	// 55MB 文件，20MB 限制：ceil(55/20) = 3 个窗口，各约 1/3 时长
	duration := 3000.0
	windows := planWindows(55*1024*1024, 20*1024*1024, duration)

	if len(windows) != 3 {
		t.Fatalf("期望 3 个窗口，得到 %d", len(windows))
	}

	third := duration / 3
	for i, w := range windows {
		if math.Abs((w.end-w.start)-third) > 1.0 {
			t.Errorf("窗口 %d 时长应约为 %.1f，得到 %.1f", i, third, w.end-w.start)
		}
	}

	// 末窗口吸收余数，终点必须精确等于总时长
	if windows[2].end != duration {
		t.Errorf("末窗口终点应为 %.1f，得到 %.1f", duration, windows[2].end)
	}
}

func TestPlanWindowsExactMultiple(t *testing.T) {
	// 恰好整除的边界：40MB / 20MB = 2 个窗口
	windows := planWindows(40*1024*1024, 20*1024*1024, 1200)

	if len(windows) != 2 {
		t.Fatalf("期望 2 个窗口，得到 %d", len(windows))
	}
}

func TestPlanWindowsContiguousCoverage(t *testing.T) {
	// 任意大小组合下：窗口数 = ceil(size/max)，时间上连续不重叠且覆盖全程
	cases := []struct {
		name     string
		size     int64
		maxBytes int64
		duration float64
	}{
		{"刚好超限", 20*1024*1024 + 1, 20 * 1024 * 1024, 100},
		{"大文件", 137 * 1024 * 1024, 20 * 1024 * 1024, 7261.5},
		{"小限制", 5 * 1024 * 1024, 1024 * 1024, 42.7},
		{"超长音频", 990 * 1024 * 1024, 25 * 1024 * 1024, 36000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			windows := planWindows(tc.size, tc.maxBytes, tc.duration)

			wantN := int((tc.size + tc.maxBytes - 1) / tc.maxBytes)
			if len(windows) != wantN {
				t.Fatalf("期望 %d 个窗口，得到 %d", wantN, len(windows))
			}

			if windows[0].start != 0 {
				t.Errorf("首窗口起点应为 0，得到 %v", windows[0].start)
			}

			for i := 1; i < len(windows); i++ {
				if windows[i].start != windows[i-1].end {
					t.Errorf("窗口 %d 起点 %v 与前窗口终点 %v 不连续", i, windows[i].start, windows[i-1].end)
				}
			}

			last := windows[len(windows)-1]
			if last.end != tc.duration {
				t.Errorf("末窗口终点应为 %v，得到 %v", tc.duration, last.end)
			}
		})
	}
}
