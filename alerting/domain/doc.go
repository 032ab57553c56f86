// Package domain define os tipos do pipeline de alertas: eventos de erro vindos
// do log, notificações a entregar e os contratos de provider e sink.
//
// Não depende de net/http nem de providers concretos.
package domain
