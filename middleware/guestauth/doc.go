// Package guestauth emite e verifica os tokens de convidado usados nos links
// de convite, e expõe um middleware que exige um token válido.
//
// Formato: <base64url(JSON do payload)>.<base64url(HMAC-SHA256 do payload codificado)>
//
// O token é uma credencial bearer: quem tem o link lê o convite daquele
// evento/convidado. Não existe lista de revogação; trocar o segredo invalida
// todos os tokens emitidos.
package guestauth
