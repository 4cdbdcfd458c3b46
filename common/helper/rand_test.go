package helper

import "testing"

func TestGenerateRandNumRange(t *testing.T) {
	seen := make(map[int]bool)
	for i := 0; i < 10000; i++ {
		n := GenerateRandNum(1, 10)
		if n < 1 || n > 10 {
			t.Fatalf("out of range: %d", n)
		}
		seen[n] = true
	}
	// 1万次抽样后 1..10 应全部出现过
	for v := 1; v <= 10; v++ {
		if !seen[v] {
			t.Fatalf("value never drawn: %d", v)
		}
	}
}

func TestGenerateRandNumDegenerate(t *testing.T) {
	for i := 0; i < 100; i++ {
		if n := GenerateRandNum(5, 5); n != 5 {
			t.Fatalf("single-value range should return 5, got %d", n)
		}
	}
}
