package feature

import "github.com/John-Robertt/slpsort/internal/domain"

// Extract 计算分类所需的全部特征。
func Extract(g domain.Game) domain.Features {
	return domain.Features{
		HasCPU:      HasCPU(g),
		TotalDamage: TotalDamage(g),
	}
}

// HasCPU 报告是否存在电脑控制的参赛者（命中第一个即返回）。
func HasCPU(g domain.Game) bool {
	for _, p := range g.Players {
		if p.Type == domain.PlayerCPU {
			return true
		}
	}
	return false
}

// TotalDamage 估算整局实际交换的伤害总量。
//
// 对每个端口逐对比较相邻帧 (a, b)：只有 b > a 时累加 b-a；
// 持平或下降（损失一条命后 percent 归零）贡献 0，不允许以负值抵消之前的伤害。
// 累加顺序：端口优先、帧次之，float32。
func TotalDamage(g domain.Game) float32 {
	var total float32
	for _, p := range g.Ports {
		total += portDamage(p.Percent)
	}
	return total
}

func portDamage(percent []float32) float32 {
	var sum float32
	for i := 1; i < len(percent); i++ {
		if prev, next := percent[i-1], percent[i]; next > prev {
			sum += next - prev
		}
	}
	return sum
}
