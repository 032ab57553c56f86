package infra

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/domain"
)

// slidingWindowScript faz check-and-increment numa ida só ao Redis.
// Contador da janela atual + janela anterior ponderada pelo tempo que ainda
// se sobrepõe (sliding window counter). GET e INCR no mesmo script evitam
// que dois requests leiam "abaixo do limite" e ambos incrementem.
//
// KEYS[1] = janela atual, KEYS[2] = janela anterior
// ARGV[1] = limite, ARGV[2] = janela (ms), ARGV[3] = agora (ms)
// Retorno: {permitido (0/1), contagem estimada, ms até o fim da janela}
const slidingWindowScript = `
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
local prev = tonumber(redis.call("GET", KEYS[2]) or "0")

local elapsed = now % window
local weight = (window - elapsed) / window
local estimated = math.floor(prev * weight) + cur

if estimated >= limit then
  return {0, estimated, window - elapsed}
end

cur = redis.call("INCR", KEYS[1])
if cur == 1 then
  redis.call("PEXPIRE", KEYS[1], window * 2)
end
return {1, estimated + 1, window - elapsed}
`

const defaultRedisPrefix = "ratelimit"

// windowKeys monta as chaves da janela atual e da anterior.
// A identidade vai entre chaves ({...}) para cair no mesmo slot em Redis Cluster.
func windowKeys(prefix string, key domain.Key, windowMs, nowMs int64) []string {
	idx := nowMs / windowMs
	base := prefix + ":{" + string(key) + "}:"
	return []string{
		base + strconv.FormatInt(idx, 10),
		base + strconv.FormatInt(idx-1, 10),
	}
}

func windowMillis(window time.Duration) int64 {
	ms := window.Milliseconds()
	if ms < 1 {
		return 1
	}
	return ms
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		return defaultRedisPrefix
	}
	return prefix
}

// parseScriptReply converte o retorno do script em domain.Window.
func parseScriptReply(reply []int64, limit int, now time.Time) (domain.Window, error) {
	if len(reply) != 3 {
		return domain.Window{}, fmt.Errorf("ratelimit script: unexpected reply %v", reply)
	}
	return domain.Window{
		Allowed: reply[0] == 1,
		Count:   int(reply[1]),
		Limit:   limit,
		ResetAt: now.Add(time.Duration(reply[2]) * time.Millisecond),
	}, nil
}
