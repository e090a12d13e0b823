package feature

import (
	"testing"

	"github.com/John-Robertt/slpsort/internal/domain"
)

func game(players []domain.PlayerType, ports ...[]float32) domain.Game {
	g := domain.Game{}
	for i, t := range players {
		g.Players = append(g.Players, domain.Player{Port: i, Type: t})
	}
	for i, p := range ports {
		g.Ports = append(g.Ports, domain.PortFrames{Port: i, Percent: p})
	}
	return g
}

func TestTotalDamage(t *testing.T) {
	cases := []struct {
		name  string
		ports [][]float32
		want  float32
	}{
		{name: "no_ports", want: 0},
		{name: "single_frame", ports: [][]float32{{42}}, want: 0},
		{name: "empty_sequence", ports: [][]float32{{}}, want: 0},
		// 单调不减：等于 last - first。
		{name: "monotonic", ports: [][]float32{{10, 10, 25, 40}}, want: 30},
		{name: "monotonic_two_ports", ports: [][]float32{{0, 5, 5, 50}, {3, 4, 60}}, want: 50 + 57},
		// 损失一条命：下降贡献 0，不能变成负数。
		{name: "stock_loss", ports: [][]float32{{0, 20, 45, 0, 15}}, want: 60},
		{name: "only_decreasing", ports: [][]float32{{90, 40, 0}}, want: 0},
		{name: "flat", ports: [][]float32{{7, 7, 7}}, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := TotalDamage(game(nil, tc.ports...))
			if got != tc.want {
				t.Fatalf("期望 %v，实际 %v", tc.want, got)
			}
		})
	}
}

func TestHasCPU(t *testing.T) {
	if HasCPU(game([]domain.PlayerType{domain.PlayerHuman, domain.PlayerHuman})) {
		t.Fatalf("全人类对局不应判为 CPU")
	}
	if !HasCPU(game([]domain.PlayerType{domain.PlayerHuman, domain.PlayerCPU})) {
		t.Fatalf("存在 CPU 时应返回 true")
	}
	if HasCPU(game([]domain.PlayerType{domain.PlayerDemo})) {
		t.Fatalf("demo 不是 CPU")
	}
	if HasCPU(domain.Game{}) {
		t.Fatalf("空对局不应判为 CPU")
	}
}

func TestExtract(t *testing.T) {
	g := game([]domain.PlayerType{domain.PlayerCPU, domain.PlayerHuman}, []float32{0, 30}, []float32{0, 12})
	got := Extract(g)
	want := domain.Features{HasCPU: true, TotalDamage: 42}
	if got != want {
		t.Fatalf("期望 %+v，实际 %+v", want, got)
	}
}
