package faqcache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldCache(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   bool
	}{
		{"too short", "Sí", false},
		{"contains error", "Error en el procesamiento de tu solicitud", false},
		{"useful answer", "Nuestros horarios son de lunes a viernes de 9:00 a 18:00 horas.", true},
		{"empty", "", false},
		{"error in the middle", "Hubo un ERROR al consultar el inventario de la tienda.", false},
		{"refusal", "Lo siento, no puedo ayudarte con esa consulta específica.", false},
		{"refusal mixed case", "Lo siento, No Puedo responder preguntas sobre ese tema.", false},
		{"exactly twenty characters", "abcdefghijklmnopqrst", true},
		{"nineteen characters", "abcdefghijklmnopqrs", false},
		{"accented text counted in characters", "ñññññññññññññññññññ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldCache(tt.answer))
		})
	}
}

func TestShouldCache_SharesFingerprintCasing(t *testing.T) {
	answer := "LO SIENTO, NO PUEDO CONFIRMAR LA RESERVACIÓN PARA MAÑANA."
	assert.Equal(t, Normalize(answer), toLower(answer))
	assert.False(t, ShouldCache(answer))
}

func TestShouldCache_ConcurrentWithFingerprint(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, ShouldCache("Abrimos de lunes a sábado, de 8:00 a 20:00 HORAS."))
			assert.Equal(t, Fingerprint("¿Abren HOY?"), Fingerprint("¿abren hoy?"))
		}()
	}
	wg.Wait()
}
