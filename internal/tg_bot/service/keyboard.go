package service

import (
	"fmt"

	"github.com/DenisKhanov/KeeneticBot/internal/tg_bot/constant"
	"github.com/DenisKhanov/KeeneticBot/internal/tg_bot/models"
)

// KeyboardBuilder renders devices into the control panel layout.
type KeyboardBuilder struct {
	Restricted models.Policy // Policy shown with the green marker.
}

// Build returns one row per device in input order. A policy in overrides, keyed by
// MAC, replaces the device's own policy.
func (k KeyboardBuilder) Build(devices []models.Device, overrides map[string]models.Policy) models.Keyboard {
	rows := make([][]models.Button, 0, len(devices))
	for _, device := range devices {
		policy := device.Policy
		if override, ok := overrides[device.MAC]; ok {
			policy = override
		}
		rows = append(rows, []models.Button{{
			Text: fmt.Sprintf("%s (%s)", device.Name, k.emoji(policy)),
			Data: device.MAC,
		}})
	}
	return models.Keyboard{Rows: rows}
}

func (k KeyboardBuilder) emoji(policy models.Policy) string {
	if policy == k.Restricted {
		return constant.EMOJI_POLICY_RESTRICTED
	}
	return constant.EMOJI_POLICY_DEFAULT
}
