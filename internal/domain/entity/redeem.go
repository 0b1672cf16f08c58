package entity

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// RedeemSlots определяет фиксированное количество слотов промокодов.
const RedeemSlots = 5

// redeemCodeAlphabet задает алфавит случайной части промокода.
const redeemCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RedeemPool хранит пять промокодов, флаги их выдачи и получателей.
// Ключи карт имеют вид "rank1".."rank5".
type RedeemPool struct {
	Codes      map[string]string `json:"codes"`
	Given      map[string]bool   `json:"given"`
	Recipients map[string]string `json:"recipients"`
}

// NewRedeemPool создает пустой пул без кодов.
func NewRedeemPool() *RedeemPool {
	return &RedeemPool{
		Codes:      make(map[string]string),
		Given:      make(map[string]bool),
		Recipients: make(map[string]string),
	}
}

// RankKey возвращает ключ слота для ранга 1..5.
func RankKey(rank int) string {
	return fmt.Sprintf("rank%d", rank)
}

// GenerateRedeemCode создает промокод вида "RANK<N>" плюс шесть
// случайных символов в верхнем регистре.
func GenerateRedeemCode(rank int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "RANK%d", rank)
	for i := 0; i < 6; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(redeemCodeAlphabet))))
		if err != nil {
			// crypto/rand практически не возвращает ошибок; на случай
			// деградации источника берем детерминированный символ.
			sb.WriteByte(redeemCodeAlphabet[i%len(redeemCodeAlphabet)])
			continue
		}
		sb.WriteByte(redeemCodeAlphabet[n.Int64()])
	}
	return sb.String()
}

// EnsureCodes лениво заполняет пул: если код первого слота пуст,
// генерируются все пять кодов заново. Возвращает true, если пул менялся.
func (p *RedeemPool) EnsureCodes() bool {
	if p.Codes == nil {
		p.Codes = make(map[string]string)
	}
	if p.Given == nil {
		p.Given = make(map[string]bool)
	}
	if p.Recipients == nil {
		p.Recipients = make(map[string]string)
	}
	if p.Codes[RankKey(1)] != "" {
		return false
	}
	for rank := 1; rank <= RedeemSlots; rank++ {
		p.Codes[RankKey(rank)] = GenerateRedeemCode(rank)
	}
	return true
}

// HolderSlot возвращает ранг слота, уже закрепленного за идентификатором,
// либо 0, если идентификатор ничего не держит. Сравнение без учета регистра.
func (p *RedeemPool) HolderSlot(identity string) int {
	identity = NormalizeIdentity(identity)
	if identity == "" {
		return 0
	}
	for rank := 1; rank <= RedeemSlots; rank++ {
		if NormalizeIdentity(p.Recipients[RankKey(rank)]) == identity {
			return rank
		}
	}
	return 0
}

// SlotUsed сообщает, выдан ли слот с данным рангом.
func (p *RedeemPool) SlotUsed(rank int) bool {
	return p.Given[RankKey(rank)]
}

// Assign закрепляет слот rank за идентификатором.
func (p *RedeemPool) Assign(rank int, identity string) {
	key := RankKey(rank)
	p.Given[key] = true
	p.Recipients[key] = identity
}

// Code возвращает промокод слота rank.
func (p *RedeemPool) Code(rank int) string {
	return p.Codes[RankKey(rank)]
}
