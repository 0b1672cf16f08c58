package entity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRedeemCode_Format(t *testing.T) {
	// Act
	code := GenerateRedeemCode(3)

	// Assert: префикс RANK3 и шесть символов алфавита
	assert.True(t, strings.HasPrefix(code, "RANK3"))
	assert.Len(t, code, len("RANK3")+6)
	for _, r := range code[len("RANK3"):] {
		assert.Contains(t, redeemCodeAlphabet, string(r))
	}
}

func TestRedeemPool_EnsureCodes(t *testing.T) {
	// Arrange
	pool := NewRedeemPool()

	// Act
	changed := pool.EnsureCodes()

	// Assert: все пять слотов заполнены
	assert.True(t, changed)
	for rank := 1; rank <= RedeemSlots; rank++ {
		assert.NotEmpty(t, pool.Code(rank))
	}

	// Повторный вызов не меняет пул
	before := pool.Code(1)
	assert.False(t, pool.EnsureCodes())
	assert.Equal(t, before, pool.Code(1))
}

func TestRedeemPool_EnsureCodes_RegeneratesWhenFirstSlotEmpty(t *testing.T) {
	// Arrange: первый слот пуст, остальные заполнены
	pool := NewRedeemPool()
	pool.EnsureCodes()
	oldSecond := pool.Code(2)
	pool.Codes[RankKey(1)] = ""

	// Act
	changed := pool.EnsureCodes()

	// Assert: пустой первый слот перегенерирует весь пул
	assert.True(t, changed)
	assert.NotEmpty(t, pool.Code(1))
	assert.NotEqual(t, oldSecond, pool.Code(2))
}

func TestRedeemPool_AssignAndHolderSlot(t *testing.T) {
	// Arrange
	pool := NewRedeemPool()
	pool.EnsureCodes()

	// Act
	pool.Assign(2, "Alice@Example.com")

	// Assert: поиск держателя без учета регистра
	assert.True(t, pool.SlotUsed(2))
	assert.Equal(t, 2, pool.HolderSlot("alice@example.com"))
	assert.Zero(t, pool.HolderSlot("bob@example.com"))
	assert.Zero(t, pool.HolderSlot(""))
}
